package session

import (
	"context"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/z0nyx/Akidzuki-CLI/internal/logutil"
)

// resolveTimeout bounds the DNS lookup done by CanReuse.
const resolveTimeout = 2 * time.Second

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Connector Connector
	Session   Options
	// KeepaliveInterval is applied to every new transport that supports it.
	KeepaliveInterval time.Duration
	// IdleTimeout closes a detached transport nobody resumed. Zero disables.
	IdleTimeout time.Duration
	// Resolver defaults to net.DefaultResolver.
	Resolver Resolver
	// Now defaults to time.Now.
	Now func() time.Time
}

// Registry owns at most one RemoteSession and the transport it was built on.
//
// After CloseSession(false) the slot is empty but the transport, and the
// detached session holding its channel, are retained so that CanReuse and
// Resume can skip re-authentication. Connect and CloseSession are meant to
// be called from one controlling goroutine.
type Registry struct {
	connector   Connector
	opts        Options
	keepalive   time.Duration
	idleTimeout time.Duration
	resolver    Resolver
	nowFn       func() time.Time
	log         *transitionLog

	mu         sync.Mutex
	slot       *RemoteSession
	retained   *RemoteSession // detached session whose channel may be resumed
	transport  Transport
	target     Target
	detachedAt time.Time
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Resolver == nil {
		cfg.Resolver = net.DefaultResolver
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		connector:   cfg.Connector,
		opts:        cfg.Session,
		keepalive:   cfg.KeepaliveInterval,
		idleTimeout: cfg.IdleTimeout,
		resolver:    cfg.Resolver,
		nowFn:       cfg.Now,
		log:         newTransitionLog(cfg.Now),
	}
}

// Connect dials target and stores a new session for it. On failure nothing
// is stored and the previous contents are left alone; on success any
// previous session and transport are fully closed.
func (r *Registry) Connect(ctx context.Context, target Target) (*RemoteSession, error) {
	label := logutil.SanitizeForLog(target.Name)
	log.Printf("[session-registry] connecting %s (%s)", label, logutil.SanitizeForLog(target.String()))

	tr, err := r.connector.Connect(ctx, target)
	if err != nil {
		ce := classifyConnectError(target.Name, err)
		log.Printf("[session-registry] connect %s failed: %s", label, ce.Kind)
		return nil, ce
	}
	if applyKeepalive(tr, r.keepalive) {
		log.Printf("[session-registry] %s: keepalive every %s", label, r.keepalive)
	}

	sess := r.newSession(target.Name, tr, nil)

	r.mu.Lock()
	prevSlot, prevRetained, prevTransport := r.slot, r.retained, r.transport
	r.slot = sess
	r.retained = nil
	r.transport = tr
	r.target = target
	r.detachedAt = time.Time{}
	r.mu.Unlock()

	closeAll(prevSlot, prevRetained, prevTransport)
	log.Printf("[session-registry] connected %s as session %s", label, sess.ID())
	return sess, nil
}

func (r *Registry) newSession(label string, tr Transport, ch Channel) *RemoteSession {
	sess := NewRemoteSession(label, tr, ch, r.opts)
	sess.onState = func(from, to State, reason string) {
		r.log.record(Transition{SessionID: sess.id, Label: label, From: from, To: to, Reason: reason})
	}
	r.log.record(Transition{SessionID: sess.id, Label: label, From: StateNew, To: StateNew, Reason: "created"})
	return sess
}

// closeAll fully closes whatever a registry held. Transport.Close is
// idempotent, so a transport shared by the sessions is fine.
func closeAll(slot, retained *RemoteSession, tr Transport) {
	if slot != nil {
		slot.Close()
	}
	if retained != nil {
		retained.Close()
	}
	if tr != nil {
		if err := tr.Close(); err != nil {
			log.Printf("[session-registry] WARNING: close transport: %v", err)
		}
	}
}

// CanReuse reports whether target can be resumed on the retained
// transport: the transport is alive right now and its peer is the
// target's host and port.
func (r *Registry) CanReuse(target Target) bool {
	r.mu.Lock()
	tr := r.transport
	slot := r.slot
	name := r.target.Name
	r.mu.Unlock()

	if tr == nil {
		return false
	}
	if slot != nil && slot.State() == StateClosed {
		return false
	}
	if !tr.IsAlive() {
		log.Printf("[session-registry] retained transport for %s is dead", logutil.SanitizeForLog(name))
		return false
	}
	return r.peerMatches(tr.PeerAddress(), target)
}

func (r *Registry) peerMatches(peer net.Addr, target Target) bool {
	if peer == nil {
		return false
	}
	host, portStr, err := net.SplitHostPort(peer.String())
	if err != nil {
		return false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port != target.Port {
		return false
	}
	peerIP := net.ParseIP(host)
	if peerIP == nil {
		return host == target.Host
	}
	if ip := net.ParseIP(target.Host); ip != nil {
		return ip.Equal(peerIP)
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	addrs, err := r.resolver.LookupHost(ctx, target.Host)
	if err != nil {
		log.Printf("[session-registry] WARNING: resolve %s: %v", logutil.SanitizeForLog(target.Host), err)
		return false
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.Equal(peerIP) {
			return true
		}
	}
	return false
}

// Resume builds a fresh session on the retained transport, reusing the
// detached channel when it is still open.
func (r *Registry) Resume(target Target) (*RemoteSession, error) {
	if !r.CanReuse(target) {
		return nil, ErrNotReusable
	}

	r.mu.Lock()
	prev := r.retained
	if prev == nil {
		prev = r.slot
	}
	var ch Channel
	if prev != nil {
		ch = prev.takeChannel()
	}
	sess := r.newSession(target.Name, r.transport, ch)
	r.slot = sess
	r.retained = nil
	r.target = target
	r.detachedAt = time.Time{}
	r.mu.Unlock()

	if prev != nil {
		// The channel moved to sess; this only marks the old wrapper closed.
		prev.Stop()
	}
	how := "new channel"
	if ch != nil {
		how = "existing channel"
	}
	log.Printf("[session-registry] resumed %s on %s", logutil.SanitizeForLog(target.Name), how)
	if d, ok := ch.(OutputDropReporter); ok {
		if n := d.DroppedOutput(); n > 0 {
			log.Printf("[session-registry] WARNING: %s: %d bytes of output were dropped while detached",
				logutil.SanitizeForLog(target.Name), n)
		}
	}
	return sess, nil
}

// ActiveSession returns the slot contents, possibly nil.
func (r *Registry) ActiveSession() *RemoteSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slot
}

// CloseSession empties the slot. With fullyClose the session, its channel
// and the transport are closed; otherwise the session is detached and the
// transport retained for CanReuse/Resume.
func (r *Registry) CloseSession(fullyClose bool) {
	r.mu.Lock()
	if fullyClose {
		slot, retained, tr := r.slot, r.retained, r.transport
		r.slot, r.retained, r.transport = nil, nil, nil
		r.target = Target{}
		r.mu.Unlock()

		closeAll(slot, retained, tr)
		if slot != nil || tr != nil {
			log.Printf("[session-registry] session fully closed")
		}
		return
	}

	sess := r.slot
	r.slot = nil
	if sess != nil {
		if r.retained != nil && r.retained != sess {
			r.retained.Stop()
		}
		r.retained = sess
	}
	r.detachedAt = r.nowFn()
	r.mu.Unlock()

	if sess != nil {
		sess.Detach()
		log.Printf("[session-registry] %s: detached, transport retained", logutil.SanitizeForLog(sess.Label()))
	}
}

// ExpireIdle fully closes a retained transport that has been detached for
// longer than the idle timeout. It reports whether anything was closed.
func (r *Registry) ExpireIdle() bool {
	r.mu.Lock()
	if r.idleTimeout <= 0 || r.slot != nil || r.transport == nil || r.detachedAt.IsZero() {
		r.mu.Unlock()
		return false
	}
	idle := r.nowFn().Sub(r.detachedAt)
	if idle < r.idleTimeout {
		r.mu.Unlock()
		return false
	}
	name := r.target.Name
	r.mu.Unlock()

	log.Printf("[session-registry] %s: detached for %s, closing", logutil.SanitizeForLog(name), idle.Truncate(time.Second))
	r.CloseSession(true)
	return true
}

// Shutdown closes everything; used on process exit.
func (r *Registry) Shutdown() {
	r.CloseSession(true)
}

// History returns recorded session transitions, oldest first.
func (r *Registry) History() []Transition {
	return r.log.history()
}

// OnStateChange registers cb for every session transition.
func (r *Registry) OnStateChange(cb StateChangeCallback) {
	r.log.subscribe(cb)
}

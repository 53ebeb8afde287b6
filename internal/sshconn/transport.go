package sshconn

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/z0nyx/Akidzuki-CLI/internal/session"
)

// probeTimeout bounds a single liveness probe.
const probeTimeout = 3 * time.Second

// Transport is an authenticated SSH client connection.
type Transport struct {
	client *ssh.Client
	label  string

	dead      atomic.Bool
	mu        sync.Mutex
	stopAlive context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

func newTransport(client *ssh.Client, label string) *Transport {
	t := &Transport{client: client, label: label}
	go func() {
		err := client.Wait()
		if !t.dead.Swap(true) {
			log.Printf("[ssh] connection to %s ended: %v", label, err)
		}
	}()
	return t
}

// OpenInteractiveChannel requests a PTY and starts the login shell.
func (t *Transport) OpenInteractiveChannel(termType string, cols, rows int) (session.Channel, error) {
	sess, err := t.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("new ssh session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty(termType, rows, cols, modes); err != nil {
		sess.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}
	return newChannel(sess, stdin, stdout, stderr), nil
}

// IsAlive sends a keepalive request and waits up to probeTimeout for the
// reply.
func (t *Transport) IsAlive() bool {
	if t.dead.Load() {
		return false
	}
	result := make(chan error, 1)
	go func() {
		_, _, err := t.client.SendRequest("keepalive@openssh.com", true, nil)
		result <- err
	}()
	select {
	case err := <-result:
		if err != nil {
			t.dead.Store(true)
			return false
		}
		return true
	case <-time.After(probeTimeout):
		log.Printf("[ssh] WARNING: liveness probe to %s timed out", t.label)
		return false
	}
}

func (t *Transport) PeerAddress() net.Addr {
	return t.client.RemoteAddr()
}

// SetKeepalive starts (or replaces) the keepalive loop. A failed keepalive
// marks the transport dead and closes it.
func (t *Transport) SetKeepalive(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopAlive != nil {
		t.stopAlive()
		t.stopAlive = nil
	}
	if interval <= 0 || t.dead.Load() {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.stopAlive = cancel
	go t.keepalive(ctx, interval)
}

func (t *Transport) keepalive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _, err := t.client.SendRequest("keepalive@openssh.com", true, nil)
			if err != nil {
				log.Printf("[ssh] WARNING: keepalive failed for %s: %v, closing connection", t.label, err)
				t.dead.Store(true)
				t.Close()
				return
			}
		}
	}
}

// Close stops the keepalive loop and closes the connection. Later calls
// return nil.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		if t.stopAlive != nil {
			t.stopAlive()
			t.stopAlive = nil
		}
		t.mu.Unlock()
		t.dead.Store(true)
		t.closeErr = t.client.Close()
	})
	return t.closeErr
}

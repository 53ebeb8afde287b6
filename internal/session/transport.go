package session

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"
)

// TermType is the terminal type requested for every interactive channel.
const TermType = "xterm-256color"

// Target carries the connection parameters of one profile.
type Target struct {
	Name     string // profile name, used as the session label
	Host     string
	Port     int
	User     string
	Password string // password or key passphrase; may be empty
	KeyFile  string
	Timeout  time.Duration
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return t.User + "@" + t.Addr()
}

// ExitStatusReporter is implemented by channels that learn the remote
// shell's exit code. -1 means the shell ended without one.
type ExitStatusReporter interface {
	ExitStatus() (code int, ok bool)
}

// OutputDropReporter is implemented by channels that discard the oldest
// pending output once their buffer is full.
type OutputDropReporter interface {
	DroppedOutput() int64
}

// Connector establishes authenticated transports. Failures should be
// *ConnectError values; anything else is treated as a transport error.
type Connector interface {
	Connect(ctx context.Context, target Target) (Transport, error)
}

// Transport is an authenticated connection able to open interactive channels.
type Transport interface {
	OpenInteractiveChannel(termType string, cols, rows int) (Channel, error)
	// IsAlive performs a bounded liveness probe.
	IsAlive() bool
	PeerAddress() net.Addr
	// Close must be safe to call more than once.
	Close() error
}

// KeepaliveSetter is implemented by transports that can send periodic
// keepalives.
type KeepaliveSetter interface {
	SetKeepalive(interval time.Duration)
}

// Channel is one interactive stream over a Transport.
type Channel interface {
	// SetNonBlocking switches Receive to return ErrWouldBlock instead of
	// waiting for data.
	SetNonBlocking()
	// Receive reads pending data. It returns io.EOF once the remote side has
	// closed and all data has been drained.
	Receive(p []byte) (int, error)
	Send(p []byte) (int, error)
	Closed() bool
	ExitStatusReady() bool
	// WaitReadable waits up to timeout for data, EOF or closure.
	WaitReadable(timeout time.Duration) bool
	Resize(cols, rows int) error
	Close() error
}

// Resolver resolves profile hosts for reuse checks. *net.Resolver
// satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

func applyKeepalive(t Transport, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	ks, ok := t.(KeepaliveSetter)
	if !ok {
		return false
	}
	ks.SetKeepalive(interval)
	return true
}

// sendAll writes p to ch, retrying short and would-block writes.
func sendAll(ch Channel, p []byte) error {
	for len(p) > 0 {
		n, err := ch.Send(p)
		p = p[n:]
		if err == nil {
			continue
		}
		if errors.Is(err, ErrWouldBlock) {
			time.Sleep(time.Millisecond)
			continue
		}
		return err
	}
	return nil
}

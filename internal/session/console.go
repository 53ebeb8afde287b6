package session

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/muesli/cancelreader"
)

// CancelReader is a reader whose blocked Read can be interrupted.
type CancelReader = cancelreader.CancelReader

// Console is the local terminal a session pumps to and from.
type Console interface {
	io.Reader
	io.Writer
	// MakeRaw puts the terminal in raw mode and returns the function that
	// restores the previous mode.
	MakeRaw() (restore func() error, err error)
	// WaitReadable waits up to timeout for input. Consoles that cannot
	// report readiness return errReadinessUnsupported.
	WaitReadable(timeout time.Duration) (bool, error)
	Size() (cols, rows int, err error)
	// Resizes delivers a value whenever the terminal size changes. It may
	// return nil.
	Resizes() <-chan struct{}
	// CancelableReader returns a reader over the console input that the
	// threaded pump can interrupt on exit.
	CancelableReader() (CancelReader, error)
}

// readinessReporter is implemented by consoles that know whether
// WaitReadable works on this platform.
type readinessReporter interface {
	SupportsReadiness() bool
}

// cancelReporter is implemented by consoles that know whether their
// CancelableReader can interrupt a blocked Read. A reader that cannot be
// canceled would keep reading the terminal after the session returns.
type cancelReporter interface {
	SupportsCancel() bool
}

// rawGuard owns raw mode on a console from acquisition until Release.
type rawGuard struct {
	mu      sync.Mutex
	restore func() error
	held    bool
}

func acquireRaw(c Console) (*rawGuard, error) {
	restore, err := c.MakeRaw()
	if err != nil {
		return nil, err
	}
	return &rawGuard{restore: restore, held: true}, nil
}

// Release restores the terminal. Safe to call more than once and on a nil
// guard.
func (g *rawGuard) Release() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		return
	}
	g.held = false
	if g.restore != nil {
		if err := g.restore(); err != nil {
			log.Printf("[session] ERROR: restore terminal: %v", err)
		}
	}
}

func (g *rawGuard) Held() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

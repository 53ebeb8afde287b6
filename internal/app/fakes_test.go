package app

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/muesli/cancelreader"

	"github.com/z0nyx/Akidzuki-CLI/internal/session"
)

// testChannel never produces output; eof means the remote shell exited.
type testChannel struct {
	mu     sync.Mutex
	sent   bytes.Buffer
	eof    bool
	closed bool
}

func (c *testChannel) SetNonBlocking() {}

func (c *testChannel) Receive([]byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return 0, session.ErrChannelClosed
	case c.eof:
		return 0, io.EOF
	default:
		return 0, session.ErrWouldBlock
	}
}

func (c *testChannel) Send(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, session.ErrChannelClosed
	}
	return c.sent.Write(p)
}

func (c *testChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *testChannel) ExitStatusReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eof
}

// ExitStatus reports 3 once the shell has exited.
func (c *testChannel) ExitStatus() (int, bool) {
	if c.ExitStatusReady() {
		return 3, true
	}
	return 0, false
}

func (c *testChannel) WaitReadable(timeout time.Duration) bool {
	if c.ExitStatusReady() || c.Closed() {
		return true
	}
	time.Sleep(timeout)
	return false
}

func (c *testChannel) Resize(int, int) error { return nil }

func (c *testChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *testChannel) Sent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent.String()
}

type testTransport struct {
	peer      *net.TCPAddr
	endOnOpen bool

	mu       sync.Mutex
	channels []*testChannel
	closed   bool
}

func (t *testTransport) OpenInteractiveChannel(string, int, int) (session.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := &testChannel{eof: t.endOnOpen}
	t.channels = append(t.channels, ch)
	return ch, nil
}

func (t *testTransport) IsAlive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

func (t *testTransport) PeerAddress() net.Addr { return t.peer }

func (t *testTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *testTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *testTransport) Channels() []*testChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*testChannel(nil), t.channels...)
}

// testConnector hands out a new transport per attempt.
type testConnector struct {
	endOnOpen bool
	err       error

	mu         sync.Mutex
	transports []*testTransport
}

func (c *testConnector) Connect(_ context.Context, target session.Target) (session.Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	tr := &testTransport{
		peer:      &net.TCPAddr{IP: net.ParseIP(target.Host), Port: target.Port},
		endOnOpen: c.endOnOpen,
	}
	c.transports = append(c.transports, tr)
	return tr, nil
}

func (c *testConnector) Transports() []*testTransport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*testTransport(nil), c.transports...)
}

// testConsole feeds queued keystrokes to the threaded pump.
type testConsole struct {
	input chan []byte

	mu  sync.Mutex
	out bytes.Buffer
}

func newTestConsole() *testConsole {
	return &testConsole{input: make(chan []byte, 16)}
}

func (c *testConsole) typeIn(s string) { c.input <- []byte(s) }

func (c *testConsole) Read(p []byte) (int, error) { return c.read(p, nil) }

func (c *testConsole) read(p []byte, cancel <-chan struct{}) (int, error) {
	select {
	case data := <-c.input:
		return copy(p, data), nil
	case <-cancel:
		return 0, cancelreader.ErrCanceled
	}
}

func (c *testConsole) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *testConsole) MakeRaw() (func() error, error) {
	return func() error { return nil }, nil
}

func (c *testConsole) WaitReadable(time.Duration) (bool, error) {
	return false, io.ErrUnexpectedEOF
}

func (c *testConsole) SupportsReadiness() bool { return false }

func (c *testConsole) Size() (int, int, error) { return 80, 24, nil }

func (c *testConsole) Resizes() <-chan struct{} { return nil }

func (c *testConsole) CancelableReader() (session.CancelReader, error) {
	return &testCancelReader{c: c, cancel: make(chan struct{})}, nil
}

type testCancelReader struct {
	c      *testConsole
	cancel chan struct{}
	once   sync.Once
}

func (r *testCancelReader) Read(p []byte) (int, error) { return r.c.read(p, r.cancel) }

func (r *testCancelReader) Cancel() bool {
	r.once.Do(func() { close(r.cancel) })
	return true
}

func (r *testCancelReader) Close() error { return nil }

type testCatalog struct {
	mu   sync.Mutex
	used []string
}

func (c *testCatalog) MarkUsed(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.used = append(c.used, name)
	return nil
}

type testSecrets map[string]string

func (s testSecrets) Get(key string) (string, error) { return s[key], nil }

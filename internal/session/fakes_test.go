package session

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/muesli/cancelreader"
)

// fakeChannel is an in-memory Channel. push feeds remote output,
// remoteEOF simulates the shell exiting.
type fakeChannel struct {
	mu          sync.Mutex
	pending     []byte
	sent        bytes.Buffer
	eof         bool
	closed      bool
	exitReady   bool
	exitCode    int
	dropped     int64
	nonBlocking bool
	closeCount  int
	resizes     [][2]int
	notify      chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{notify: make(chan struct{}, 1)}
}

func (c *fakeChannel) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *fakeChannel) push(data []byte) {
	c.mu.Lock()
	c.pending = append(c.pending, data...)
	c.mu.Unlock()
	c.signal()
}

func (c *fakeChannel) remoteEOF() {
	c.mu.Lock()
	c.eof = true
	c.mu.Unlock()
	c.signal()
}

func (c *fakeChannel) SetNonBlocking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonBlocking = true
}

func (c *fakeChannel) Receive(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	switch {
	case c.closed:
		return 0, ErrChannelClosed
	case c.eof:
		return 0, io.EOF
	default:
		return 0, ErrWouldBlock
	}
}

func (c *fakeChannel) Send(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.eof {
		return 0, ErrChannelClosed
	}
	return c.sent.Write(p)
}

func (c *fakeChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) ExitStatusReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitReady
}

func (c *fakeChannel) ExitStatus() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode, c.exitReady
}

func (c *fakeChannel) DroppedOutput() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *fakeChannel) readable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0 || c.eof || c.closed
}

func (c *fakeChannel) WaitReadable(timeout time.Duration) bool {
	if c.readable() {
		return true
	}
	select {
	case <-c.notify:
	case <-time.After(timeout):
	}
	return c.readable()
}

func (c *fakeChannel) Resize(cols, rows int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resizes = append(c.resizes, [2]int{cols, rows})
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCount++
	if c.closed {
		return ErrChannelClosed
	}
	c.closed = true
	return nil
}

func (c *fakeChannel) Sent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.sent.Bytes()...)
}

func (c *fakeChannel) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

// fakeConsole is an in-memory Console. typeIn feeds keystrokes; closing
// input (hangup) makes reads return io.EOF.
type fakeConsole struct {
	input     chan []byte
	resizeCh  chan struct{}
	readiness bool
	// noCancel makes the cancelable reader ignore Cancel.
	noCancel bool
	// writeDelay slows every Write down.
	writeDelay time.Duration

	mu           sync.Mutex
	out          bytes.Buffer
	leftover     []byte
	inputClosed  bool
	rawCalls     int
	restoreCalls int
	cols, rows   int
}

func newFakeConsole(readiness bool) *fakeConsole {
	return &fakeConsole{
		input:     make(chan []byte, 64),
		resizeCh:  make(chan struct{}, 1),
		readiness: readiness,
		cols:      120,
		rows:      40,
	}
}

func (c *fakeConsole) typeIn(data string) { c.input <- []byte(data) }
func (c *fakeConsole) hangup()           { close(c.input) }

func (c *fakeConsole) SupportsReadiness() bool { return c.readiness }
func (c *fakeConsole) SupportsCancel() bool    { return !c.noCancel }

func (c *fakeConsole) takeLeftover(p []byte) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.leftover) > 0 {
		n := copy(p, c.leftover)
		c.leftover = c.leftover[n:]
		return n, true
	}
	if c.inputClosed {
		return 0, true
	}
	return 0, false
}

func (c *fakeConsole) accept(data []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.inputClosed = true
		return
	}
	c.leftover = append(c.leftover, data...)
}

func (c *fakeConsole) Read(p []byte) (int, error) {
	return c.read(p, nil)
}

func (c *fakeConsole) read(p []byte, cancel <-chan struct{}) (int, error) {
	for {
		if n, done := c.takeLeftover(p); done {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		select {
		case data, ok := <-c.input:
			c.accept(data, ok)
		case <-cancel:
			return 0, cancelreader.ErrCanceled
		}
	}
}

func (c *fakeConsole) WaitReadable(timeout time.Duration) (bool, error) {
	c.mu.Lock()
	ready := len(c.leftover) > 0 || c.inputClosed
	c.mu.Unlock()
	if ready {
		return true, nil
	}
	select {
	case data, ok := <-c.input:
		c.accept(data, ok)
		return true, nil
	case <-time.After(timeout):
		return false, nil
	}
}

func (c *fakeConsole) Write(p []byte) (int, error) {
	if c.writeDelay > 0 {
		time.Sleep(c.writeDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *fakeConsole) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

func (c *fakeConsole) MakeRaw() (func() error, error) {
	c.mu.Lock()
	c.rawCalls++
	c.mu.Unlock()
	return func() error {
		c.mu.Lock()
		c.restoreCalls++
		c.mu.Unlock()
		return nil
	}, nil
}

// RawBalanced reports whether every MakeRaw was restored.
func (c *fakeConsole) RawBalanced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rawCalls == c.restoreCalls
}

func (c *fakeConsole) Size() (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cols, c.rows, nil
}

func (c *fakeConsole) resize(cols, rows int) {
	c.mu.Lock()
	c.cols, c.rows = cols, rows
	c.mu.Unlock()
	c.resizeCh <- struct{}{}
}

func (c *fakeConsole) Resizes() <-chan struct{} { return c.resizeCh }

func (c *fakeConsole) CancelableReader() (CancelReader, error) {
	return &fakeCancelReader{c: c, cancel: make(chan struct{})}, nil
}

type fakeCancelReader struct {
	c      *fakeConsole
	cancel chan struct{}
	once   sync.Once
}

func (r *fakeCancelReader) Read(p []byte) (int, error) { return r.c.read(p, r.cancel) }

func (r *fakeCancelReader) Cancel() bool {
	if r.c.noCancel {
		return false
	}
	r.once.Do(func() { close(r.cancel) })
	return true
}

// pendingInput reports whether typed input has not been read yet.
func (c *fakeConsole) pendingInput() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.input) > 0 || len(c.leftover) > 0
}

func (r *fakeCancelReader) Close() error { return nil }

// fakeTransport hands out fakeChannels.
type fakeTransport struct {
	mu         sync.Mutex
	alive      bool
	peer       net.Addr
	closeCount int
	channels   []*fakeChannel
	openErr    error
	keepalive  time.Duration
}

func newFakeTransport(ip string, port int) *fakeTransport {
	return &fakeTransport{alive: true, peer: &net.TCPAddr{IP: net.ParseIP(ip), Port: port}}
}

func (t *fakeTransport) OpenInteractiveChannel(termType string, cols, rows int) (Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openErr != nil {
		return nil, t.openErr
	}
	ch := newFakeChannel()
	t.channels = append(t.channels, ch)
	return ch, nil
}

func (t *fakeTransport) IsAlive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive && t.closeCount == 0
}

func (t *fakeTransport) setAlive(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alive = v
}

func (t *fakeTransport) PeerAddress() net.Addr { return t.peer }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeCount++
	return nil
}

func (t *fakeTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCount > 0
}

func (t *fakeTransport) SetKeepalive(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keepalive = d
}

// lastChannel waits for the transport to have opened a channel.
func (t *fakeTransport) lastChannel(tb testing.TB) *fakeChannel {
	tb.Helper()
	var ch *fakeChannel
	waitFor(tb, "channel opened", func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()
		if len(t.channels) == 0 {
			return false
		}
		ch = t.channels[len(t.channels)-1]
		return true
	})
	return ch
}

func (t *fakeTransport) channelCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.channels)
}

type fakeConnector struct {
	mu       sync.Mutex
	next     []Transport
	err      error
	attempts []Target
}

func (c *fakeConnector) Connect(ctx context.Context, target Target) (Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = append(c.attempts, target)
	if c.err != nil {
		return nil, c.err
	}
	tr := c.next[0]
	c.next = c.next[1:]
	return tr, nil
}

type fakeResolver map[string][]string

func (r fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if addrs, ok := r[host]; ok {
		return addrs, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func waitFor(tb testing.TB, what string, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	tb.Fatalf("timed out waiting for %s", what)
}

type startResult struct {
	state State
	err   error
}

func startAsync(ctx context.Context, s *RemoteSession) <-chan startResult {
	done := make(chan startResult, 1)
	go func() {
		st, err := s.StartInteractiveShell(ctx)
		done <- startResult{st, err}
	}()
	return done
}

func awaitResult(tb testing.TB, done <-chan startResult) startResult {
	tb.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(3 * time.Second):
		tb.Fatal("StartInteractiveShell did not return")
		return startResult{}
	}
}

package sshconn

import "sync"

// defaultBufferSize bounds pending remote output (1 MiB).
const defaultBufferSize = 1024 * 1024

// outputBuffer holds remote output until the session pump consumes it.
// When more than maxLen bytes are pending the oldest are dropped.
type outputBuffer struct {
	mu      sync.Mutex
	data    []byte
	maxLen  int
	eof     bool
	dropped int64
	notify  chan struct{} // signaled (non-blocking) on new data or EOF
}

func newOutputBuffer(maxLen int) *outputBuffer {
	if maxLen <= 0 {
		maxLen = defaultBufferSize
	}
	return &outputBuffer{
		maxLen: maxLen,
		notify: make(chan struct{}, 1),
	}
}

func (b *outputBuffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Write appends p, trimming from the front past maxLen.
func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	if over := len(b.data) - b.maxLen; over > 0 {
		b.data = b.data[over:]
		b.dropped += int64(over)
	}
	b.mu.Unlock()
	b.signal()
	return len(p), nil
}

// closeWrite marks the end of remote output.
func (b *outputBuffer) closeWrite() {
	b.mu.Lock()
	b.eof = true
	b.mu.Unlock()
	b.signal()
}

// read consumes up to len(p) bytes. eof is true once the buffer is empty
// and no more data will arrive.
func (b *outputBuffer) read(p []byte) (n int, eof bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n = copy(p, b.data)
	b.data = b.data[n:]
	if len(b.data) == 0 {
		b.data = nil
	}
	return n, n == 0 && b.eof
}

func (b *outputBuffer) readable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data) > 0 || b.eof
}

func (b *outputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func (b *outputBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *outputBuffer) Notify() <-chan struct{} {
	return b.notify
}

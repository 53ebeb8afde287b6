package sshconn

import (
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/z0nyx/Akidzuki-CLI/internal/session"
)

// Channel is an interactive shell session. Output is copied into a bounded
// buffer by background readers so Receive can be non-blocking.
type Channel struct {
	sess  *ssh.Session
	stdin io.WriteCloser
	buf   *outputBuffer

	nonBlocking atomic.Bool
	closed      atomic.Bool
	exitReady   atomic.Bool
	exitStatus  atomic.Int32
	done        chan struct{}
	closeOnce   sync.Once
}

func newChannel(sess *ssh.Session, stdin io.WriteCloser, stdout, stderr io.Reader) *Channel {
	c := &Channel{
		sess:  sess,
		stdin: stdin,
		buf:   newOutputBuffer(defaultBufferSize),
		done:  make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go c.copyOutput(&readers, stdout)
	go c.copyOutput(&readers, stderr)

	go func() {
		err := sess.Wait()
		readers.Wait()
		c.buf.closeWrite()
		c.setExit(err)
	}()
	return c
}

func (c *Channel) copyOutput(wg *sync.WaitGroup, r io.Reader) {
	defer wg.Done()
	if _, err := io.Copy(c.buf, r); err != nil && !c.closed.Load() {
		log.Printf("[ssh] WARNING: read shell output: %v", err)
	}
}

func (c *Channel) setExit(err error) {
	status := 0
	if err != nil {
		status = -1
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			status = exitErr.ExitStatus()
		}
	}
	c.exitStatus.Store(int32(status))
	c.exitReady.Store(true)
}

// ExitStatus returns the remote shell's exit code once it is known; -1
// means the shell ended without reporting one.
func (c *Channel) ExitStatus() (int, bool) {
	if !c.exitReady.Load() {
		return 0, false
	}
	return int(c.exitStatus.Load()), true
}

// DroppedOutput is how many bytes were trimmed from the output buffer
// because nobody read them in time.
func (c *Channel) DroppedOutput() int64 {
	return c.buf.Dropped()
}

func (c *Channel) SetNonBlocking() {
	c.nonBlocking.Store(true)
}

// Receive returns pending output, io.EOF once the shell has ended and
// everything has been read, or session.ErrWouldBlock in non-blocking mode.
func (c *Channel) Receive(p []byte) (int, error) {
	for {
		if c.closed.Load() {
			return 0, session.ErrChannelClosed
		}
		n, eof := c.buf.read(p)
		if n > 0 {
			return n, nil
		}
		if eof {
			return 0, io.EOF
		}
		if c.nonBlocking.Load() {
			return 0, session.ErrWouldBlock
		}
		select {
		case <-c.buf.Notify():
		case <-c.done:
		}
	}
}

func (c *Channel) Send(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, session.ErrChannelClosed
	}
	n, err := c.stdin.Write(p)
	if errors.Is(err, io.EOF) {
		return n, session.ErrChannelClosed
	}
	return n, err
}

func (c *Channel) Closed() bool {
	return c.closed.Load()
}

func (c *Channel) ExitStatusReady() bool {
	return c.exitReady.Load()
}

// WaitReadable waits for output, end of output or Close.
func (c *Channel) WaitReadable(timeout time.Duration) bool {
	if c.closed.Load() || c.buf.readable() {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-c.buf.Notify():
			if c.buf.readable() {
				return true
			}
		case <-c.done:
			return true
		case <-timer.C:
			return c.buf.readable()
		}
	}
}

// Resize sends a window-change request.
func (c *Channel) Resize(cols, rows int) error {
	if c.closed.Load() {
		return session.ErrChannelClosed
	}
	return c.sess.WindowChange(rows, cols)
}

// Close closes the shell channel. The connection stays open.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		c.stdin.Close()
		if err := c.sess.Close(); err != nil && !errors.Is(err, io.EOF) {
			log.Printf("[ssh] WARNING: close shell channel: %v", err)
		}
	})
	return nil
}

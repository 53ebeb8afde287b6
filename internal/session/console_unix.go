//go:build unix

package session

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

var errReadinessUnsupported = errors.New("console readiness not supported")

func (c *StdConsole) SupportsReadiness() bool { return true }

// WaitReadable polls stdin for up to timeout, retrying on EINTR.
func (c *StdConsole) WaitReadable(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(c.in.Fd()), Events: unix.POLLIN}}
	deadline := time.Now().Add(timeout)
	for {
		ms := int(time.Until(deadline) / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("poll stdin: %w", err)
		}
		if n == 0 {
			return false, nil
		}
		// POLLHUP/POLLERR count as readable so the following Read reports
		// the condition.
		return fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0, nil
	}
}

func watchResize(out chan<- struct{}) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGWINCH)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigs:
				select {
				case out <- struct{}{}:
				default:
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func defaultPumpKind() PumpKind { return PumpPoll }

// SupportsCancel reports whether cancelreader can interrupt reads here. It
// uses epoll, kqueue or select everywhere except aix.
func (c *StdConsole) SupportsCancel() bool { return runtime.GOOS != "aix" }

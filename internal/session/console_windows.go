//go:build windows

package session

import (
	"errors"
	"os"
	"time"
)

var errReadinessUnsupported = errors.New("console readiness not supported")

// SupportsReadiness is false: console handles cannot be polled.
func (c *StdConsole) SupportsReadiness() bool { return false }

func (c *StdConsole) WaitReadable(time.Duration) (bool, error) {
	return false, errReadinessUnsupported
}

func watchResize(chan<- struct{}) func() { return func() {} }

func defaultPumpKind() PumpKind { return PumpThreaded }

// SupportsCancel is true only for the process stdin; cancelreader falls
// back to an uncancelable reader for any other handle.
func (c *StdConsole) SupportsCancel() bool { return c.in.Fd() == os.Stdin.Fd() }

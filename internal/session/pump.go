package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/z0nyx/Akidzuki-CLI/internal/config"
)

const (
	chunkSize = 4096
	// idleSleep is the threaded pump's back-off after a would-block receive.
	idleSleep = 10 * time.Millisecond
	// DefaultPollInterval bounds every readiness wait of the poll pump.
	DefaultPollInterval = 100 * time.Millisecond
)

// PumpKind selects the I/O strategy of a session.
type PumpKind int

const (
	PumpAuto PumpKind = iota
	PumpPoll
	PumpThreaded
)

func (k PumpKind) String() string {
	switch k {
	case PumpPoll:
		return config.IOStrategyPoll
	case PumpThreaded:
		return config.IOStrategyThreaded
	default:
		return config.IOStrategyAuto
	}
}

// ParsePumpKind maps an io_strategy setting to a PumpKind.
func ParsePumpKind(s string) (PumpKind, error) {
	switch s {
	case config.IOStrategyAuto, "":
		return PumpAuto, nil
	case config.IOStrategyPoll:
		return PumpPoll, nil
	case config.IOStrategyThreaded:
		return PumpThreaded, nil
	default:
		return PumpAuto, fmt.Errorf("unknown io strategy %q", s)
	}
}

// resolvePumpKind fixes the strategy for one session. Auto picks the poll
// pump only when the console can report readiness. The threaded pump is
// replaced by the poll pump when the console input cannot be canceled and
// readiness is available.
func resolvePumpKind(kind PumpKind, c Console) PumpKind {
	readiness, known := supportsReadiness(c)
	if kind == PumpAuto {
		switch {
		case !known:
			kind = defaultPumpKind()
		case readiness:
			kind = PumpPoll
		default:
			kind = PumpThreaded
		}
	}
	if kind == PumpThreaded && readiness {
		if r, ok := c.(cancelReporter); ok && !r.SupportsCancel() {
			log.Printf("[session] WARNING: console input cannot be canceled, using the poll pump")
			return PumpPoll
		}
	}
	return kind
}

func supportsReadiness(c Console) (supported, known bool) {
	r, ok := c.(readinessReporter)
	if !ok {
		return false, false
	}
	return r.SupportsReadiness(), true
}

func newPump(kind PumpKind) pump {
	if kind == PumpThreaded {
		return threadedPump{}
	}
	return pollPump{}
}

// Outcome is why a pump returned.
type Outcome int

const (
	// OutcomeStopped: the session left Active from outside the pump.
	OutcomeStopped Outcome = iota
	OutcomeDetached
	OutcomeRemoteClosed
	OutcomeInterrupted
	OutcomeLocalEOF
	OutcomeLocalError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDetached:
		return "detached"
	case OutcomeRemoteClosed:
		return "remote closed"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeLocalEOF:
		return "local eof"
	case OutcomeLocalError:
		return "local i/o error"
	default:
		return "stopped"
	}
}

// pump moves bytes between console and channel until the session leaves
// Active or one of the exit conditions occurs.
type pump interface {
	run(ctx context.Context, p *pumpIO) (Outcome, error)
}

// pumpIO is what a pump may touch.
type pumpIO struct {
	label        string
	channel      Channel
	console      Console
	pollInterval time.Duration
	recorder     *Recording
	// active reports whether the owning session is still Active.
	active func() bool
}

func (p *pumpIO) toConsole(data []byte) error {
	if p.recorder != nil {
		p.recorder.RecordOutput(data)
	}
	if _, err := p.console.Write(data); err != nil {
		return fmt.Errorf("%w: write: %v", ErrLocalIO, err)
	}
	return nil
}

func (p *pumpIO) toChannel(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if p.recorder != nil {
		p.recorder.RecordInput(data)
	}
	return sendAll(p.channel, data)
}

// resize forwards a pending terminal size change, if any.
func (p *pumpIO) resize() {
	select {
	case <-p.console.Resizes():
	default:
		return
	}
	cols, rows, err := p.console.Size()
	if err != nil {
		return
	}
	if err := p.channel.Resize(cols, rows); err != nil {
		log.Printf("[session] WARNING: %s: resize to %dx%d: %v", p.label, cols, rows, err)
	}
}

// remoteDone reports whether the channel will produce no more output.
func remoteDone(ch Channel) bool {
	return ch.Closed() || ch.ExitStatusReady()
}

// drainChannel copies whatever output is still pending to the console
// without waiting.
func drainChannel(p *pumpIO, buf []byte) {
	for {
		n, err := p.channel.Receive(buf)
		if n > 0 {
			if p.toConsole(buf[:n]) != nil {
				return
			}
		}
		if err != nil || n == 0 {
			return
		}
	}
}

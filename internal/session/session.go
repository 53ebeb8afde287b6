package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/z0nyx/Akidzuki-CLI/internal/logutil"
)

// Options configures the sessions a Registry builds.
type Options struct {
	Console      Console
	Pump         PumpKind
	PollInterval time.Duration
	// RecordingDir enables recording when non-empty.
	RecordingDir string
	RecordInput  bool
	// OnDetach, when set, is called after a session detaches.
	OnDetach func(s *RemoteSession)
}

// RemoteSession pumps one interactive channel to the local console.
//
// Lifecycle:
//  1. NewRemoteSession -> StateNew
//  2. StartInteractiveShell -> StateActive (blocks)
//  3. Ctrl+B or Detach -> StateDetached (channel and transport stay open)
//  4. remote EOF, interrupt, Stop or Close -> StateClosed
//
// A detached session may still be stopped or closed; it is never started
// again.
type RemoteSession struct {
	id        string
	label     string
	transport Transport
	console   Console
	pump      pump
	pumpKind  PumpKind
	opts      Options
	createdAt time.Time

	mu             sync.Mutex
	state          State
	channel        Channel
	guard          *rawGuard
	returnedToMenu bool
	recorder       *Recording
	exitCode       int
	exitKnown      bool
	transportOnce  sync.Once

	// onState is installed by the Registry to record transitions.
	onState func(from, to State, reason string)
}

// NewRemoteSession wraps a transport and, when resuming, an already open
// channel. A nil channel is opened at start.
func NewRemoteSession(label string, transport Transport, channel Channel, opts Options) *RemoteSession {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	kind := resolvePumpKind(opts.Pump, opts.Console)
	return &RemoteSession{
		id:        uuid.New().String(),
		label:     label,
		transport: transport,
		console:   opts.Console,
		pump:      newPump(kind),
		pumpKind:  kind,
		opts:      opts,
		createdAt: time.Now(),
		state:     StateNew,
		channel:   channel,
	}
}

func (s *RemoteSession) ID() string         { return s.id }
func (s *RemoteSession) Label() string      { return s.label }
func (s *RemoteSession) PumpKind() PumpKind { return s.pumpKind }

func (s *RemoteSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Channel returns the channel while the session is not closed.
func (s *RemoteSession) Channel() Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// RawHeld reports whether the session still owns raw mode.
func (s *RemoteSession) RawHeld() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard.Held()
}

// ReturnedToMenu is set when the session detached; the caller clears it
// with ClearReturnedToMenu after acting on it.
func (s *RemoteSession) ReturnedToMenu() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.returnedToMenu
}

func (s *RemoteSession) ClearReturnedToMenu() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returnedToMenu = false
}

// setState must be called with s.mu held; it returns the notification to
// run after unlocking.
func (s *RemoteSession) setState(to State, reason string) func() {
	from := s.state
	s.state = to
	cb := s.onState
	if cb == nil || from == to {
		return func() {}
	}
	return func() { cb(from, to, reason) }
}

// StartInteractiveShell opens the channel if needed, takes raw mode and
// pumps until the session leaves Active. It returns StateDetached or
// StateClosed. A non-nil error reports a channel open or local I/O
// failure; remote EOF is not an error.
func (s *RemoteSession) StartInteractiveShell(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.state != StateNew {
		st := s.state
		s.mu.Unlock()
		return st, fmt.Errorf("session %s already started (%s)", s.label, st)
	}
	ch := s.channel
	s.mu.Unlock()

	if ch == nil || ch.Closed() {
		cols, rows, err := s.console.Size()
		if err != nil {
			cols, rows = 80, 24
		}
		ch, err = s.transport.OpenInteractiveChannel(TermType, cols, rows)
		if err != nil {
			s.Stop()
			return StateClosed, fmt.Errorf("open interactive channel: %w", err)
		}
		s.mu.Lock()
		if s.state != StateNew {
			st := s.state
			s.mu.Unlock()
			ch.Close()
			return st, nil
		}
		s.channel = ch
		s.mu.Unlock()
	} else if cols, rows, err := s.console.Size(); err == nil {
		// The terminal may have changed size while detached.
		_ = ch.Resize(cols, rows)
	}
	ch.SetNonBlocking()

	guard, err := acquireRaw(s.console)
	if err != nil {
		s.Stop()
		return StateClosed, fmt.Errorf("%w: raw mode: %v", ErrLocalIO, err)
	}
	defer guard.Release()

	if s.opts.RecordingDir != "" {
		s.recorder = NewRecording(0, s.opts.RecordInput)
	}

	s.mu.Lock()
	if s.state != StateNew {
		// Stopped while the channel was opening.
		st := s.state
		s.mu.Unlock()
		return st, nil
	}
	s.guard = guard
	notify := s.setState(StateActive, "interactive shell started")
	s.mu.Unlock()
	notify()

	log.Printf("[session] %s: started %s (%s pump)", logutil.SanitizeForLog(s.label), s.id, s.pumpKind)

	pio := &pumpIO{
		label:        logutil.SanitizeForLog(s.label),
		channel:      ch,
		console:      s.console,
		pollInterval: s.opts.PollInterval,
		recorder:     s.recorder,
		active:       func() bool { return s.State() == StateActive },
	}
	outcome, perr := s.pump.run(ctx, pio)

	switch outcome {
	case OutcomeDetached:
		s.detach("detach byte")
	case OutcomeStopped:
	default:
		s.stop(outcome.String())
	}
	guard.Release()
	s.saveRecording()

	st := s.State()
	log.Printf("[session] %s: pump finished: %s -> %s", pio.label, outcome, st)
	if st == StateDetached && s.opts.OnDetach != nil {
		s.opts.OnDetach(s)
	}
	return st, perr
}

// Detach leaves Active without closing the channel or the transport and
// restores the terminal. No-op unless Active.
func (s *RemoteSession) Detach() {
	s.detach("detach requested")
}

func (s *RemoteSession) detach(reason string) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	notify := s.setState(StateDetached, reason)
	s.returnedToMenu = true
	guard := s.guard
	s.guard = nil
	s.mu.Unlock()

	guard.Release()
	notify()
	log.Printf("[session] %s: detached (%s)", logutil.SanitizeForLog(s.label), reason)
}

// ExitStatus returns the remote shell's exit code recorded when the session
// closed, if the channel reported one.
func (s *RemoteSession) ExitStatus() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, s.exitKnown
}

// Stop closes the channel but not the transport. Idempotent.
func (s *RemoteSession) Stop() {
	s.stop("stopped")
}

func (s *RemoteSession) stop(reason string) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	notify := s.setState(StateClosed, reason)
	ch := s.channel
	s.channel = nil
	if r, ok := ch.(ExitStatusReporter); ok {
		s.exitCode, s.exitKnown = r.ExitStatus()
	}
	guard := s.guard
	s.guard = nil
	s.mu.Unlock()

	guard.Release()
	if ch != nil {
		if err := ch.Close(); err != nil && !errors.Is(err, ErrChannelClosed) {
			log.Printf("[session] WARNING: %s: close channel: %v", logutil.SanitizeForLog(s.label), err)
		}
	}
	notify()
	log.Printf("[session] %s: closed (%s)", logutil.SanitizeForLog(s.label), reason)
}

// Close stops the session and closes its transport. Idempotent; errors are
// logged, never returned.
func (s *RemoteSession) Close() {
	s.Stop()
	s.transportOnce.Do(func() {
		if s.transport == nil {
			return
		}
		if err := s.transport.Close(); err != nil {
			log.Printf("[session] WARNING: %s: close transport: %v", logutil.SanitizeForLog(s.label), err)
		}
	})
}

// takeChannel hands the open channel of a detached session to its
// successor; the detached wrapper no longer owns it.
func (s *RemoteSession) takeChannel() Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || s.state == StateActive {
		return nil
	}
	ch := s.channel
	s.channel = nil
	if ch != nil && ch.Closed() {
		return nil
	}
	return ch
}

func (s *RemoteSession) saveRecording() {
	if s.recorder == nil || s.opts.RecordingDir == "" {
		return
	}
	cols, rows, err := s.console.Size()
	if err != nil {
		cols, rows = 80, 24
	}
	path, err := s.recorder.Save(s.opts.RecordingDir, s.label, cols, rows)
	if err != nil {
		log.Printf("[session] ERROR: %s: save recording: %v", logutil.SanitizeForLog(s.label), err)
		return
	}
	log.Printf("[session] %s: recording saved to %s", logutil.SanitizeForLog(s.label), path)
}

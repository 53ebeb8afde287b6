// state.go tracks RemoteSession lifecycle states for the Registry.
//
// Every state change of a session built by the Registry is recorded in a
// ring buffer (50 entries) for diagnostics, and registered callbacks are
// invoked on every change.

package session

import (
	"sync"
	"time"
)

// State is the lifecycle state of a RemoteSession.
type State int

const (
	// StateNew is a session that has not been started yet.
	StateNew State = iota
	StateActive
	// StateDetached keeps the channel open without pumping. Terminal for
	// the object: resuming builds a new RemoteSession around the channel.
	StateDetached
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateDetached:
		return "detached"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const transitionBufferSize = 50

// Transition records a single state change.
type Transition struct {
	SessionID string    `json:"session_id"`
	Label     string    `json:"label"`
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// StateChangeCallback is called synchronously after a state change.
type StateChangeCallback func(t Transition)

// transitionLog is a fixed-size ring of transitions plus subscribers.
type transitionLog struct {
	mu          sync.RWMutex
	transitions [transitionBufferSize]Transition
	head        int
	count       int
	callbacks   []StateChangeCallback
	nowFn       func() time.Time
}

func newTransitionLog(nowFn func() time.Time) *transitionLog {
	return &transitionLog{nowFn: nowFn}
}

func (l *transitionLog) record(t Transition) {
	l.mu.Lock()
	t.Timestamp = l.nowFn()
	l.transitions[l.head] = t
	l.head = (l.head + 1) % transitionBufferSize
	if l.count < transitionBufferSize {
		l.count++
	}
	cbs := make([]StateChangeCallback, len(l.callbacks))
	copy(cbs, l.callbacks)
	l.mu.Unlock()

	for _, cb := range cbs {
		cb(t)
	}
}

// history returns transitions oldest first.
func (l *transitionLog) history() []Transition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.count == 0 {
		return nil
	}
	result := make([]Transition, l.count)
	if l.count < transitionBufferSize {
		copy(result, l.transitions[:l.count])
	} else {
		n := copy(result, l.transitions[l.head:])
		copy(result[n:], l.transitions[:l.head])
	}
	return result
}

func (l *transitionLog) subscribe(cb StateChangeCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, cb)
}

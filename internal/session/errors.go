package session

import (
	"errors"
	"fmt"
)

var (
	// ErrWouldBlock is returned by a non-blocking Channel.Receive when no
	// data is pending. It is expected flow, not a failure.
	ErrWouldBlock = errors.New("operation would block")
	// ErrChannelClosed is returned by Channel operations after the channel
	// has been closed by either side.
	ErrChannelClosed = errors.New("channel closed")

	ErrAuthentication = errors.New("authentication failed")
	ErrTransport      = errors.New("transport error")
	ErrLocalIO        = errors.New("local terminal i/o error")

	// ErrNotReusable is returned by Registry.Resume when CanReuse is false.
	ErrNotReusable = errors.New("no reusable session for target")
)

// ErrorKind classifies a failed connection attempt.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindAuthentication
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication failure"
	default:
		return "transport error"
	}
}

// ConnectError is the classified failure of a Connector. It matches
// ErrAuthentication or ErrTransport with errors.Is, as well as the
// underlying cause.
type ConnectError struct {
	Kind   ErrorKind
	Target string
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("connect %s: %s: %v", e.Target, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() []error {
	sentinel := ErrTransport
	if e.Kind == KindAuthentication {
		sentinel = ErrAuthentication
	}
	return []error{sentinel, e.Err}
}

// classifyConnectError makes sure every connect failure leaving the
// registry is a *ConnectError. Unclassified errors count as transport
// errors.
func classifyConnectError(target string, err error) *ConnectError {
	var ce *ConnectError
	if errors.As(err, &ce) {
		if ce.Target == "" {
			ce.Target = target
		}
		return ce
	}
	kind := KindTransport
	if errors.Is(err, ErrAuthentication) {
		kind = KindAuthentication
	}
	return &ConnectError{Kind: kind, Target: target, Err: err}
}

package sshconn

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/z0nyx/Akidzuki-CLI/internal/session"
)

var (
	ErrHostKeyChanged = errors.New("remote host key has changed")
	ErrHostKeyUnknown = errors.New("remote host key is unknown")
	ErrNoAuthMethods  = errors.New("no authentication methods available")
)

// classify turns a dial or handshake error into a *session.ConnectError.
func classify(target string, err error) *session.ConnectError {
	kind := session.KindTransport
	if isAuthError(err) {
		kind = session.KindAuthentication
	}
	return &session.ConnectError{Kind: kind, Target: target, Err: err}
}

func isAuthError(err error) bool {
	if errors.Is(err, ErrNoAuthMethods) {
		return true
	}
	if errors.Is(err, ErrHostKeyChanged) || errors.Is(err, ErrHostKeyUnknown) {
		return false
	}
	// x/crypto/ssh reports exhausted auth methods only as text.
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}

// Message renders a connect error for the operator.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ce *session.ConnectError
	if errors.As(err, &ce) && ce.Kind == session.KindAuthentication {
		return "Authentication failed. Check username, password or key."
	}
	if errors.Is(err, ErrHostKeyChanged) {
		return fmt.Sprintf("Host key verification failed: %v", unwrapCause(err))
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("Network error: %v", opErr)
	}
	return fmt.Sprintf("SSH connection error: %v", unwrapCause(err))
}

func unwrapCause(err error) error {
	var ce *session.ConnectError
	if errors.As(err, &ce) {
		return ce.Err
	}
	return err
}

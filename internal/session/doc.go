// Package session implements the detachable interactive shell: a
// RemoteSession pumps bytes between the local console and one remote
// channel, and a Registry keeps at most one such session (and the
// transport it rides on) alive between menu selections.
//
// # Detach vs close
//
// Pressing Ctrl+B (DetachByte) inside a session stops the pump and restores
// the local terminal but leaves the remote shell running. The Registry
// keeps the transport so that selecting the same host again resumes the
// shell without re-authenticating:
//
//	sess, _ := reg.Connect(ctx, target)
//	st, _ := sess.StartInteractiveShell(ctx) // returns StateDetached on Ctrl+B
//	reg.CloseSession(false)                  // keep channel and transport
//	...
//	if reg.CanReuse(target) {
//		sess, _ = reg.Resume(target)
//	}
//
// A remote EOF, an exit status, a local read failure or cancellation of
// the context ends the session in StateClosed instead.
//
// # I/O strategies
//
// Two pumps implement the same contract. The poll pump is single-threaded
// and multiplexes channel and stdin readiness with a bounded wait. The
// threaded pump runs one goroutine per direction and lets the caller's
// goroutine own the channel; it is used where stdin cannot be polled.
// The strategy is chosen once when the session is built.
package session

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
)

// pollPump multiplexes channel and console readiness on the caller's
// goroutine. Each cycle waits at most pollInterval in total, so state
// changes and cancellation are seen within one cycle.
type pollPump struct{}

func (pollPump) run(ctx context.Context, p *pumpIO) (Outcome, error) {
	half := p.pollInterval / 2
	if half <= 0 {
		half = DefaultPollInterval / 2
	}
	remoteBuf := make([]byte, chunkSize)
	localBuf := make([]byte, chunkSize)

	for p.active() {
		if ctx.Err() != nil {
			return OutcomeInterrupted, nil
		}
		p.resize()

		// remote -> local
		if p.channel.WaitReadable(half) {
			n, err := p.channel.Receive(remoteBuf)
			if n > 0 {
				if werr := p.toConsole(remoteBuf[:n]); werr != nil {
					return OutcomeLocalError, werr
				}
			}
			switch {
			case err == nil, errors.Is(err, ErrWouldBlock):
			case errors.Is(err, io.EOF), errors.Is(err, ErrChannelClosed):
				return OutcomeRemoteClosed, nil
			default:
				log.Printf("[session] WARNING: %s: receive: %v", p.label, err)
				return OutcomeRemoteClosed, nil
			}
		}
		if remoteDone(p.channel) {
			drainChannel(p, remoteBuf)
			return OutcomeRemoteClosed, nil
		}

		if !p.active() {
			break
		}

		// local -> remote
		ready, err := p.console.WaitReadable(half)
		if err != nil {
			return OutcomeLocalError, fmt.Errorf("%w: %v", ErrLocalIO, err)
		}
		if !ready {
			continue
		}
		n, err := p.console.Read(localBuf)
		if n == 0 && err != nil {
			return OutcomeLocalEOF, nil
		}
		forward, detach := splitAtDetach(localBuf[:n])
		if serr := p.toChannel(forward); serr != nil {
			if errors.Is(serr, ErrChannelClosed) || errors.Is(serr, io.EOF) {
				return OutcomeRemoteClosed, nil
			}
			log.Printf("[session] WARNING: %s: send: %v", p.label, serr)
			return OutcomeRemoteClosed, nil
		}
		if detach {
			return OutcomeDetached, nil
		}
	}
	return OutcomeStopped, nil
}

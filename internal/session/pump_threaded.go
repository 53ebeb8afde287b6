package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muesli/cancelreader"
)

const queueDepth = 256

// threadedPump runs an input worker and an output worker. The caller's
// goroutine is the only one touching the channel; the workers only touch
// their own queue and the stop signal.
type threadedPump struct{}

type threadedState struct {
	input      chan []byte
	output     chan []byte
	inputErr   chan error
	done       chan struct{}
	writerExit chan struct{} // closed when the output worker stops
	stopping   atomic.Bool
	detach     atomic.Bool
}

func (threadedPump) run(ctx context.Context, p *pumpIO) (Outcome, error) {
	reader, err := p.console.CancelableReader()
	if err != nil {
		return OutcomeLocalError, fmt.Errorf("%w: %v", ErrLocalIO, err)
	}

	st := &threadedState{
		input:      make(chan []byte, queueDepth),
		output:     make(chan []byte, queueDepth),
		inputErr:   make(chan error, 1),
		done:       make(chan struct{}),
		writerExit: make(chan struct{}),
	}

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		st.readInput(reader)
	}()

	var outputWG sync.WaitGroup
	outputWG.Add(1)
	go func() {
		defer outputWG.Done()
		st.writeOutput(p)
	}()

	defer func() {
		st.stopping.Store(true)
		close(st.done)
		canceled := reader.Cancel()
		outputWG.Wait()
		if canceled {
			<-inputDone
			reader.Close()
			return
		}
		// The worker is still blocked in Read. Whatever it reads next is
		// discarded, and it closes the reader on its way out.
		log.Printf("[session] WARNING: %s: console reader could not be canceled", p.label)
		go func() {
			<-inputDone
			reader.Close()
		}()
	}()

	return st.loop(ctx, p)
}

// readInput is the input worker. It stops at the first DetachByte, on a
// read error, or once done is closed.
func (st *threadedState) readInput(r io.Reader) {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if st.stopping.Load() {
			return
		}
		if n > 0 {
			forward, detach := splitAtDetach(buf[:n])
			if len(forward) > 0 {
				chunk := make([]byte, len(forward))
				copy(chunk, forward)
				select {
				case st.input <- chunk:
				case <-st.done:
					return
				}
			}
			if detach {
				st.detach.Store(true)
				return
			}
		}
		if err != nil {
			if !st.stopping.Load() && !errors.Is(err, cancelreader.ErrCanceled) {
				select {
				case st.inputErr <- err:
				default:
				}
			}
			return
		}
	}
}

// writeOutput is the output worker. On stop it flushes what is queued.
func (st *threadedState) writeOutput(p *pumpIO) {
	defer close(st.writerExit)
	for {
		select {
		case data := <-st.output:
			if p.toConsole(data) != nil {
				return
			}
		case <-st.done:
			for {
				select {
				case data := <-st.output:
					if p.toConsole(data) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (st *threadedState) loop(ctx context.Context, p *pumpIO) (Outcome, error) {
	buf := make([]byte, chunkSize)
	for p.active() {
		if ctx.Err() != nil {
			return OutcomeInterrupted, nil
		}
		p.resize()

		idle := true
		n, err := p.channel.Receive(buf)
		if n > 0 {
			idle = false
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case st.output <- data:
			case <-st.writerExit:
				return OutcomeLocalError, fmt.Errorf("%w: console output failed", ErrLocalIO)
			case <-ctx.Done():
				return OutcomeInterrupted, nil
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
		if remoteDone(p.channel) {
			st.drainRemote(ctx, p, buf)
			return OutcomeRemoteClosed, nil
		}

		sent, err := st.drainInput(p)
		if err != nil {
			return OutcomeRemoteClosed, nil
		}
		if sent {
			idle = false
		}

		if st.detach.Load() {
			// The worker queues bytes before raising the flag.
			if _, err := st.drainInput(p); err != nil {
				return OutcomeRemoteClosed, nil
			}
			return OutcomeDetached, nil
		}

		select {
		case err := <-st.inputErr:
			if errors.Is(err, io.EOF) {
				return OutcomeLocalEOF, nil
			}
			return OutcomeLocalError, fmt.Errorf("%w: %v", ErrLocalIO, err)
		default:
		}

		if idle {
			time.Sleep(idleSleep)
		}
	}
	return OutcomeStopped, nil
}

// drainInput sends every queued input chunk to the channel.
func (st *threadedState) drainInput(p *pumpIO) (bool, error) {
	sent := false
	for {
		select {
		case data := <-st.input:
			if err := p.toChannel(data); err != nil {
				log.Printf("[session] WARNING: %s: send: %v", p.label, err)
				return sent, err
			}
			sent = true
		default:
			return sent, nil
		}
	}
}

// drainRemote queues output still pending on a finished channel. It waits
// for room in the output queue and stops early only if the output worker
// has died or ctx ends.
func (st *threadedState) drainRemote(ctx context.Context, p *pumpIO, buf []byte) {
	for {
		n, err := p.channel.Receive(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case st.output <- data:
			case <-st.writerExit:
				return
			case <-ctx.Done():
				return
			}
		}
		if err != nil || n == 0 {
			return
		}
	}
}

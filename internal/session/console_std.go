package session

import (
	"fmt"
	"os"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// StdConsole is the process terminal.
type StdConsole struct {
	in      *os.File
	out     *os.File
	resizes chan struct{}
	stop    func()
}

// NewStdConsole wraps os.Stdin and os.Stdout.
func NewStdConsole() *StdConsole {
	return NewConsole(os.Stdin, os.Stdout)
}

// NewConsole wraps an arbitrary terminal pair. Call Close to stop resize
// notifications.
func NewConsole(in, out *os.File) *StdConsole {
	c := &StdConsole{in: in, out: out, resizes: make(chan struct{}, 1)}
	c.stop = watchResize(c.resizes)
	return c
}

func (c *StdConsole) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *StdConsole) Write(p []byte) (int, error) { return c.out.Write(p) }

// MakeRaw is a no-op when input is not a terminal.
func (c *StdConsole) MakeRaw() (func() error, error) {
	fd := int(c.in.Fd())
	if !term.IsTerminal(fd) {
		return func() error { return nil }, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("make raw: %w", err)
	}
	return func() error { return term.Restore(fd, state) }, nil
}

// Size falls back to 80x24 when the output is not a terminal.
func (c *StdConsole) Size() (int, int, error) {
	cols, rows, err := term.GetSize(int(c.out.Fd()))
	if err != nil {
		return 80, 24, err
	}
	return cols, rows, nil
}

func (c *StdConsole) Resizes() <-chan struct{} { return c.resizes }

func (c *StdConsole) CancelableReader() (CancelReader, error) {
	r, err := cancelreader.NewReader(c.in)
	if err != nil {
		return nil, fmt.Errorf("cancelable stdin: %w", err)
	}
	return r, nil
}

// Close stops resize notifications.
func (c *StdConsole) Close() error {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	return nil
}

package display

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// spinnerFrames is a chase animation over eight cells, like the LED ring.
var spinnerFrames = []string{"●○○○○○○○", "○●○○○○○○", "○○●○○○○○", "○○○●○○○○", "○○○○●○○○", "○○○○○●○○", "○○○○○○●○", "○○○○○○○●"}

// CLI renders the indicator as a spinner on a terminal.
type CLI struct {
	out      io.Writer
	interval time.Duration
	busy     *color.Color

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewCLI creates a terminal indicator writing to out.
// A nil writer means os.Stdout.
func NewCLI(out io.Writer) *CLI {
	if out == nil {
		out = os.Stdout
	}
	return &CLI{
		out:      out,
		interval: 50 * time.Millisecond,
		busy:     color.New(color.FgHiWhite, color.Bold),
	}
}

// ShowBusy starts the spinner.
func (c *CLI) ShowBusy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.spin(c.stop, c.done)
}

// Clear stops the spinner and erases it.
func (c *CLI) Clear() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Busy reports whether the spinner is running.
func (c *CLI) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *CLI) spin(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	pos := 0
	for {
		c.busy.Fprintf(c.out, "\r%s", spinnerFrames[pos])
		pos = (pos + 1) % len(spinnerFrames)

		select {
		case <-stop:
			fmt.Fprint(c.out, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}

var _ Indicator = (*CLI)(nil)

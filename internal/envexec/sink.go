package envexec

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Sink consumes one line of child output.
type Sink func(line string)

// DiscardSink drops every line.
var DiscardSink Sink = func(string) {}

// LogSink forwards lines to logger at info level.
func LogSink(logger zerolog.Logger) Sink {
	return func(line string) {
		logger.Info().Msg(line)
	}
}

// WriterSink writes each line, newline terminated, to w.
func WriterSink(w io.Writer) Sink {
	return func(line string) {
		fmt.Fprintln(w, line)
	}
}

// CollectSink keeps every line in memory.
type CollectSink struct {
	mu    sync.Mutex
	lines []string
}

func (c *CollectSink) Sink() Sink {
	return func(line string) {
		c.mu.Lock()
		c.lines = append(c.lines, line)
		c.mu.Unlock()
	}
}

// Lines returns a copy of the lines collected so far.
func (c *CollectSink) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

package envexec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Pump drains one child's output stream on its own goroutine.
//
// A child blocks once its pipe buffer is full, so a pump must be started
// before Wait is called on the process. Delivery is best-effort: nothing
// joins the pump unless the caller uses Join.
type Pump struct {
	done  chan struct{}
	lines atomic.Int64
	err   error
}

// StartPump reads r line by line and hands each line to sink in order. A nil
// sink logs lines through logger. r is closed at end of stream when it is an
// io.Closer.
func StartPump(r io.Reader, sink Sink, logger zerolog.Logger) *Pump {
	if sink == nil {
		sink = LogSink(logger)
	}
	p := &Pump{done: make(chan struct{})}
	go p.run(r, sink, logger)
	return p
}

func (p *Pump) run(r io.Reader, sink Sink, logger zerolog.Logger) {
	defer close(p.done)
	if closer, ok := r.(io.Closer); ok {
		defer closer.Close()
	}

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			sink(strings.TrimRight(line, "\r\n"))
			p.lines.Add(1)
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			p.err = fmt.Errorf("%w: %w", ErrStreamRead, err)
			logger.Error().Err(p.err).Int64("lines", p.lines.Load()).Msg("output pump stopped")
		}
		return
	}
}

// Done is closed once the stream hit end of file or a read error.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

// Join waits for the pump to drain the stream. A non-positive timeout waits
// without bound. It reports whether the pump finished in time.
func (p *Pump) Join(timeout time.Duration) bool {
	if timeout <= 0 {
		<-p.done
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// Lines is the number of lines delivered so far.
func (p *Pump) Lines() int64 {
	return p.lines.Load()
}

// Err is the read error that stopped the pump, if any. Only meaningful after Done.
func (p *Pump) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

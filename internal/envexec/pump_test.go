package envexec

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPumpDeliversLinesInOrder(t *testing.T) {
	collector := &CollectSink{}
	pump := StartPump(strings.NewReader("one\ntwo\r\n\nthree"), collector.Sink(), zerolog.Nop())
	if !pump.Join(time.Second) {
		t.Fatalf("pump did not finish")
	}

	want := []string{"one", "two", "", "three"}
	if got := collector.Lines(); !reflect.DeepEqual(got, want) {
		t.Fatalf("want %q, got %q", want, got)
	}
	if pump.Lines() != int64(len(want)) {
		t.Fatalf("expected %d counted lines, got %d", len(want), pump.Lines())
	}
	if pump.Err() != nil {
		t.Fatalf("unexpected pump error: %v", pump.Err())
	}
}

func TestPumpHandlesLongLines(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	collector := &CollectSink{}
	pump := StartPump(strings.NewReader(long+"\nend\n"), collector.Sink(), zerolog.Nop())
	pump.Join(0)

	lines := collector.Lines()
	if len(lines) != 2 || len(lines[0]) != len(long) || lines[1] != "end" {
		t.Fatalf("unexpected long-line delivery: count=%d", len(lines))
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestPumpStopsOnReadError(t *testing.T) {
	boom := errors.New("pipe broke")
	collector := &CollectSink{}
	pump := StartPump(&failingReader{data: []byte("before\n"), err: boom}, collector.Sink(), zerolog.Nop())
	<-pump.Done()

	if !errors.Is(pump.Err(), ErrStreamRead) || !errors.Is(pump.Err(), boom) {
		t.Fatalf("expected stream read error wrapping cause, got %v", pump.Err())
	}
	if got := collector.Lines(); !reflect.DeepEqual(got, []string{"before"}) {
		t.Fatalf("unexpected lines before failure: %q", got)
	}
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestPumpClosesStreamAtEOF(t *testing.T) {
	stream := &closeTracker{Reader: strings.NewReader("a\n")}
	pump := StartPump(stream, DiscardSink, zerolog.Nop())
	pump.Join(0)
	if !stream.closed {
		t.Fatalf("expected stream to be closed after EOF")
	}
}

func TestPumpJoinTimesOutOnOpenStream(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	pump := StartPump(reader, DiscardSink, zerolog.Nop())
	if pump.Join(20 * time.Millisecond) {
		t.Fatalf("expected join to time out while the stream is open")
	}
	if pump.Err() != nil {
		t.Fatalf("Err must be nil while running, got %v", pump.Err())
	}

	fmt.Fprintln(writer, "late")
	writer.Close()
	if !pump.Join(time.Second) {
		t.Fatalf("expected pump to finish after writer closed")
	}
	if pump.Lines() != 1 {
		t.Fatalf("expected the late line to be delivered, got %d", pump.Lines())
	}
}

func TestWriterSinkTerminatesLines(t *testing.T) {
	var out strings.Builder
	sink := WriterSink(&out)
	sink("hello")
	sink("")
	if out.String() != "hello\n\n" {
		t.Fatalf("unexpected writer sink output: %q", out.String())
	}
}

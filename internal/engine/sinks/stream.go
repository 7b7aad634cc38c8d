package sinks

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/term"
)

// StreamSink writes sealed artifacts to a writer such as stdout. Sealed
// artifacts are binary, so a writer attached to a terminal is refused.
type StreamSink struct {
	w       io.Writer
	written int64
	closed  bool
}

// fdWriter is implemented by *os.File.
type fdWriter interface {
	io.Writer
	Fd() uintptr
}

// flushWriter is implemented by buffered writers such as *bufio.Writer.
type flushWriter interface {
	io.Writer
	Flush() error
}

// IsTerminal reports whether w writes to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(fdWriter)
	return ok && term.IsTerminal(int(f.Fd()))
}

func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

func (s *StreamSink) Name() string {
	return "stream"
}

func (s *StreamSink) Kind() string {
	return "stream"
}

// Written returns the number of bytes streamed so far.
func (s *StreamSink) Written() int64 {
	return s.written
}

func (s *StreamSink) Write(ctx context.Context, path string, data io.Reader) error {
	if s.closed {
		return fmt.Errorf("stream sink is closed")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if IsTerminal(s.w) {
		return fmt.Errorf("refusing to write sealed artifact %s to a terminal", path)
	}

	n, err := io.Copy(s.w, data)
	s.written += n
	if err != nil {
		return fmt.Errorf("failed to stream %s after %d bytes: %w", path, n, err)
	}
	return nil
}

// Close flushes buffered writers. The underlying writer stays open.
func (s *StreamSink) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	if f, ok := s.w.(flushWriter); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("failed to flush stream: %w", err)
		}
	}
	return nil
}

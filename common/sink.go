package common

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Sink defines the destination of session log lines.
type Sink interface {
	// WriteLine writes a single line; a trailing newline is added if missing.
	WriteLine(line string) error
	// Flush pushes any buffered lines to the underlying destination.
	Flush() error
}

type flusher interface {
	Flush() error
}

type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

// StdoutSink delivers the default sink, writing lines to the process standard output.
func StdoutSink() Sink {
	return &writerSink{w: os.Stdout}
}

// NewWriterSink delivers a sink that writes lines to w.
// If w implements Flush() error, Flush is delegated to it.
func NewWriterSink(w io.Writer) (Sink, error) {
	if w == nil {
		return nil, NewConfigError("log sink", "writer must not be nil")
	}
	return &writerSink{w: w}, nil
}

func (s *writerSink) WriteLine(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, line)
	return err
}

func (s *writerSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

type zapSink struct {
	logger *zap.Logger
}

// NewZapSink delivers a sink that emits each line as an info entry on logger.
func NewZapSink(logger *zap.Logger) (Sink, error) {
	if logger == nil {
		return nil, NewConfigError("log sink", "zap logger must not be nil")
	}
	return &zapSink{logger: logger}, nil
}

func (s *zapSink) WriteLine(line string) error {
	s.logger.Info(strings.TrimSuffix(line, "\n"))
	return nil
}

func (s *zapSink) Flush() error {
	return s.logger.Sync()
}

// Package logging builds the zerolog logger handed to every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	Level string
	// File receives JSON lines when set. Otherwise Console is used.
	File string
	// Console is the human-readable sink; nil means os.Stderr.
	Console io.Writer
}

// Sink is the writer behind a logger built by New. Loggers derived from that
// logger keep writing to the Sink when its destination changes.
type Sink struct {
	mu   sync.Mutex
	out  io.Writer
	file *os.File
}

// Write sends one encoded event to the current destination.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Write(p)
}

// Divert sends events as JSON lines to the file at path until restore is
// called. restore puts the previous destination back and closes the file.
func (s *Sink) Divert(path string) (restore func() error, err error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	prev := s.out
	s.out = f
	s.mu.Unlock()

	var once sync.Once
	return func() error {
		var closeErr error
		once.Do(func() {
			s.mu.Lock()
			s.out = prev
			s.mu.Unlock()
			closeErr = f.Close()
		})
		return closeErr
	}, nil
}

// Close closes the log file, if the Sink owns one.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.out = io.Discard
	return err
}

// New returns a logger and the Sink it writes to. Close the Sink when done.
func New(opts Options) (zerolog.Logger, *Sink, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), &Sink{out: io.Discard}, err
	}

	sink := &Sink{}
	if path := strings.TrimSpace(opts.File); path != "" {
		f, err := openFile(path)
		if err != nil {
			return zerolog.Nop(), &Sink{out: io.Discard}, err
		}
		sink.out = f
		sink.file = f
	} else {
		out := opts.Console
		if out == nil {
			out = os.Stderr
		}
		sink.out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	log := zerolog.New(sink).Level(level).With().Timestamp().Logger()
	return log, sink, nil
}

func openFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// ParseLevel accepts zerolog level names; empty means info.
func ParseLevel(raw string) (zerolog.Level, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return zerolog.InfoLevel, nil
	}
	if trimmed == "warning" {
		trimmed = "warn"
	}
	level, err := zerolog.ParseLevel(trimmed)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", raw, err)
	}
	return level, nil
}

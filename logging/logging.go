package logging

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Options selects level, format and an optional log file. An empty File
// disables file logging.
type Options struct {
	Level  string
	Format string
	File   string
}

// teeWriter holds log output back until a destination is available (the
// TUI log pane only exists once the screen is up) and copies every line
// to the log file if one is configured.
type teeWriter struct {
	mu        sync.Mutex
	pending   bytes.Buffer
	target    io.Writer
	file      *os.File
	buffering bool
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	switch {
	case w.buffering:
		w.pending.Write(p)
	case w.target != nil:
		if _, err := w.target.Write(p); err != nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(p), firstErr
}

var (
	wmu    sync.Mutex
	writer = &teeWriter{target: os.Stderr}
)

// ParseLevel maps DEBUG, INFO, WARN and ERROR (any case) to a slog level.
// Anything else yields INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs a new default slog logger. With bufferOutput set, output is
// held back until SetOutput is called; otherwise it goes to stderr.
func Init(bufferOutput bool, opts Options) error {
	w := &teeWriter{buffering: bufferOutput}
	if !bufferOutput {
		w.target = os.Stderr
	}
	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("can't open log file %s: %w", opts.File, err)
		}
		w.file = file
	}

	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}

	wmu.Lock()
	writer = w
	wmu.Unlock()
	slog.SetDefault(slog.New(handler))
	return nil
}

func current() *teeWriter {
	wmu.Lock()
	defer wmu.Unlock()
	return writer
}

// SetOutput flushes everything held back so far to target and then writes
// live to it.
func SetOutput(target io.Writer) error {
	w := current()
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending.Len() > 0 {
		if _, err := target.Write(w.pending.Bytes()); err != nil {
			return err
		}
		w.pending.Reset()
	}
	w.target = target
	w.buffering = false
	return nil
}

// BufferOutput detaches the current target and holds output back again.
func BufferOutput() {
	w := current()
	w.mu.Lock()
	defer w.mu.Unlock()

	w.target = nil
	w.buffering = true
}

// Close writes out whatever is still held back and closes the log file.
// Without a file or a live target the pending lines go to stderr so they
// are not lost on shutdown.
func Close() error {
	w := current()
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.pending.Len() > 0 {
		var dst io.Writer
		switch {
		case w.file != nil:
			// the file already received every line
		case w.target == nil:
			dst = os.Stderr
		}
		if dst != nil {
			if _, err := dst.Write(w.pending.Bytes()); err != nil {
				firstErr = err
			}
		}
		w.pending.Reset()
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.file = nil
	}
	return firstErr
}

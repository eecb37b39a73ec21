// Package logging builds the daemon's slog logger: a text or JSON handler
// writing to stderr or to a size-rotated file.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for file output.
const (
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 7
	DefaultMaxAgeDays = 30
)

var (
	// ErrUnknownLevel is returned for a level name ParseLevel does not know.
	ErrUnknownLevel = errors.New("logging: unknown level")
	// ErrUnknownFormat is returned for a format other than text or json.
	ErrUnknownFormat = errors.New("logging: unknown format")
	// ErrInvalidRotation is returned for negative or zero rotation limits.
	ErrInvalidRotation = errors.New("logging: invalid rotation settings")
)

// Options selects the handler and its destination.
type Options struct {
	Level  string // debug, info, warn or error
	Format string // text or json
	// File, when set, sends output to a rotated file instead of the
	// fallback writer.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ParseLevel maps a level name to a slog.Level. Matching ignores case and
// surrounding space; "warning" is accepted for warn.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// New builds a logger from opts. Output goes to fallback unless opts.File
// is set. The returned cleanup closes the file, if any.
func New(opts Options, fallback io.Writer) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := fallback
	cleanup := func() error { return nil }
	if opts.File != "" {
		rot, err := newRotator(opts)
		if err != nil {
			return nil, nil, err
		}
		out = rot
		cleanup = rot.Close
	}

	ho := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		handler = slog.NewTextHandler(out, ho)
	case "json":
		handler = slog.NewJSONHandler(out, ho)
	default:
		_ = cleanup()
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}

	return slog.New(handler), cleanup, nil
}

func newRotator(opts Options) (*lumberjack.Logger, error) {
	size, backups, age := opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays
	if size == 0 {
		size = DefaultMaxSizeMB
	}
	if size < 0 || backups < 0 || age < 0 {
		return nil, fmt.Errorf("%w: size %d, backups %d, age %d", ErrInvalidRotation, size, backups, age)
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    size,
		MaxBackups: backups,
		MaxAge:     age,
		Compress:   opts.Compress,
	}, nil
}

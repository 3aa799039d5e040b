package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// levelRouter sends INFO and WARN records to one handler and ERROR records
// to another.
type levelRouter struct {
	out slog.Handler
	err slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.err.Handle(ctx, r)
	}
	return lr.out.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{out: lr.out.WithAttrs(attrs), err: lr.err.WithAttrs(attrs)}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{out: lr.out.WithGroup(name), err: lr.err.WithGroup(name)}
}

func newLevelRouter(out, errOut io.Writer) *levelRouter {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	return &levelRouter{
		out: slog.NewTextHandler(out, opts),
		err: slog.NewTextHandler(errOut, opts),
	}
}

// setupLogger installs the default logger. When logPath is set every record
// is also appended to that file; the returned func closes it.
func setupLogger(logPath string) (func(), error) {
	stdout := io.Writer(os.Stdout)
	stderr := io.Writer(os.Stderr)
	cleanup := func() {}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdout = io.MultiWriter(os.Stdout, f)
		stderr = io.MultiWriter(os.Stderr, f)
	}

	slog.SetDefault(slog.New(newLevelRouter(stdout, stderr)))
	return cleanup, nil
}

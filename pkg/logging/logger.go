// Package logging sets up structured run logging to the console and the run
// log file.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
)

// LevelCritical sits above slog.LevelError for unrecoverable failures.
const LevelCritical = slog.Level(12)

var levels = map[string]slog.Level{
	"critical": LevelCritical,
	"error":    slog.LevelError,
	"warning":  slog.LevelWarn,
	"info":     slog.LevelInfo,
	"debug":    slog.LevelDebug,
}

// Logger wraps slog.Logger with ms2rescore-specific helpers.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// ParseLevel maps a log level name onto a slog level.
func ParseLevel(name string) (slog.Level, error) {
	level, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, core.NewConfigurationError("log_level", "invalid log level '%s', should be one of %s",
			name, strings.Join(LevelNames(), ", "))
	}
	return level, nil
}

// LevelNames returns the accepted log level names.
func LevelNames() []string {
	names := make([]string, 0, len(levels))
	for name := range levels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return levels[names[i]] > levels[names[j]] })
	return names
}

// New creates a Logger writing human-readable text records to w.
func New(level slog.Level, w io.Writer) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if l, ok := a.Value.Any().(slog.Level); ok && l >= LevelCritical {
					a.Value = slog.StringValue("CRITICAL")
				}
			}
			return a
		},
	})
	return &Logger{Logger: slog.New(handler)}
}

// Setup creates a Logger that writes to stderr and, when logFile is not
// empty, to logFile (truncated). Close flushes and releases the file.
func Setup(levelName, logFile string) (*Logger, error) {
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	if logFile == "" {
		return New(level, os.Stderr), nil
	}

	f, err := os.Create(logFile)
	if err != nil {
		return nil, err
	}
	l := New(level, io.MultiWriter(os.Stderr, f))
	l.closer = f
	return l, nil
}

// Noop creates a Logger that discards all log output.
func Noop() *Logger {
	return New(slog.Level(1000), io.Discard)
}

// Critical logs at LevelCritical.
func (l *Logger) Critical(msg string, args ...any) {
	l.Log(context.Background(), LevelCritical, msg, args...)
}

// With returns a Logger that includes the given attributes in each record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), closer: l.closer}
}

// WithStage adds the pipeline stage to each record.
func (l *Logger) WithStage(stage string) *Logger {
	return l.With("stage", stage)
}

// LogGenerator logs the outcome of one feature generator.
func (l *Logger) LogGenerator(ctx context.Context, name string, features int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "feature generator failed",
			"generator", name,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "feature generator completed",
		"generator", name,
		"features", features,
	)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

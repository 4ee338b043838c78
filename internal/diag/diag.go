// Package diag emits the contents of tool diagnostic files to an
// operator-visible log sink.
package diag

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// Sink receives error-level diagnostic text, one call per file.
type Sink interface {
	Error(ctx context.Context, text string)
}

// SlogSink writes diagnostics as error records. A nil Logger means slog.Default().
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Error(ctx context.Context, text string) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(ctx, text)
}

// FileLogger reads diagnostic files and forwards their contents to Sink.
type FileLogger struct {
	Sink Sink
}

// NewFileLogger returns a FileLogger writing to sink.
func NewFileLogger(sink Sink) *FileLogger {
	return &FileLogger{Sink: sink}
}

// LogFiles sends the full contents of every existing file in paths to the
// sink, in order, with one trailing line ending removed. Missing files are
// skipped silently. It returns the paths that were logged.
func (l *FileLogger) LogFiles(ctx context.Context, paths ...string) []string {
	var logged []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.WarnContext(ctx, "diagnostic file unreadable: skipping", "path", path, "error", err)
			}
			continue
		}
		l.Sink.Error(ctx, chomp(string(data)))
		logged = append(logged, path)
	}
	return logged
}

func chomp(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	return strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r")
}

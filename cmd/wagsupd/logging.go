// cmd/wagsupd/logging.go
package main

import (
	"io"
	"log/slog"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/waglayla/waglayla-supervisor/internal/paths"
)

// Supervisor log rotation limits.
const (
	logMaxSizeMB  = 20
	logMaxBackups = 5
	logMaxAgeDays = 30
)

// parseLevel maps a level name onto slog; unknown names select info.
func parseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// newLogger writes structured logs to console and to the rotating
// supervisor log under appDir. The returned closer flushes the file.
func newLogger(appDir, level string, console io.Writer) (*slog.Logger, io.Closer) {
	file := &lumberjack.Logger{
		Filename:   filepath.Join(paths.LogsPath(appDir), paths.SupervisorLog),
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	}

	var w io.Writer = file
	if console != nil {
		w = io.MultiWriter(console, file)
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
	return logger, file
}

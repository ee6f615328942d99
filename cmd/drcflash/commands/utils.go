package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/drc-tools/drcflash/internal/config"
	"github.com/drc-tools/drcflash/pkg/errors"
)

// ensureDirectories creates the journal directory and any extra directories given
func ensureDirectories(sqlitePath string, dirs ...string) error {
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// logToFile sends logs to work-dir/drcflash.log while the TUI owns the terminal
func logToFile(cfg *config.Config) (func(), error) {
	path := filepath.Join(cfg.WorkDir, "drcflash.log")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}

	out := &lumberjack.Logger{
		Filename:   filepath.ToSlash(path),
		MaxSize:    5, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
	}

	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})))

	return func() {
		slog.SetDefault(prev)
		out.Close()
	}, nil
}

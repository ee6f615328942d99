package main

import (
	"log/slog"
	"os"

	"github.com/drc-tools/drcflash/cmd/drcflash/commands"
)

func main() {
	// Text logs on stderr until a command redirects them
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}

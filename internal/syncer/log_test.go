package syncer

import (
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelDebug)
	switch strings.ToLower(strings.TrimSpace(os.Getenv("MDTASKS_LOG_LEVEL"))) {
	case "info":
		level.Set(slog.LevelInfo)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	os.Exit(m.Run())
}

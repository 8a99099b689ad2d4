package logger

import (
	"log/slog"
	"os"
)

// New настраивает JSON-логгер приложения. В dev включаем debug.
func New(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("app", "groom-salon")
}

package app

import (
	"log/slog"
	"os"
)

// NewLogger returns a configured slog.Logger based on configuration.
// LOG_FORMAT=json selects the JSON handler; anything else is human readable.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts).WithAttrs([]slog.Attr{slog.String("service", "gudang")}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// Package logger configures the process-wide structured logger and exposes
// per-component loggers used across services.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config selects the output level and format of the global logger.
type Config struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

var (
	initOnce sync.Once
	levelVar slog.LevelVar

	// L is the base logger.
	L *slog.Logger

	// DB logs database events.
	DB *slog.Logger
	// MIG logs migration events.
	MIG *slog.Logger
	// TG logs provider transport events.
	TG *slog.Logger
	// SUP logs bot supervisor events.
	SUP *slog.Logger
	// BOT logs admin and restaurant bot handler activity.
	BOT *slog.Logger
	// SVCOrders logs order service activity.
	SVCOrders *slog.Logger
	// SVCBots logs bot instance registry activity.
	SVCBots *slog.Logger
	// SVCNotify logs notification dispatch activity.
	SVCNotify *slog.Logger
	// HTTP logs webhook server activity.
	HTTP *slog.Logger
)

// Init configures the global structured logger. It may be called only once;
// later calls are no-ops.
func Init(cfg Config) error {
	var initErr error
	initOnce.Do(func() {
		level, err := parseLevel(cfg.Level)
		if err != nil {
			initErr = err
			return
		}
		levelVar.Set(level)

		opts := &slog.HandlerOptions{Level: &levelVar}
		var handler slog.Handler
		switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
		case "", "text", "kv":
			handler = slog.NewTextHandler(os.Stdout, opts)
		case "json":
			handler = slog.NewJSONHandler(os.Stdout, opts)
		default:
			initErr = fmt.Errorf("logger: unknown format %q; allowed: text, json", cfg.Format)
			return
		}

		L = slog.New(handler)
		slog.SetDefault(L)
		wireComponents()
	})
	return initErr
}

func wireComponents() {
	DB = L.With("component", "db")
	MIG = L.With("component", "db.migrate")
	TG = L.With("component", "tg")
	SUP = L.With("component", "supervisor")
	BOT = L.With("component", "bot")
	SVCOrders = L.With("component", "service.orders")
	SVCBots = L.With("component", "service.bots")
	SVCNotify = L.With("component", "service.notify")
	HTTP = L.With("component", "http")
}

// Component derives a logger tagged with the given component name.
func Component(name string) *slog.Logger {
	base := L
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", name)
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logger: unknown level %q", raw)
	}
}

func init() {
	// Keep component loggers usable before Init runs (tests, tooling).
	L = slog.Default()
	wireComponents()
}

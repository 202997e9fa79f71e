package botkit

import (
	"log/slog"

	"github.com/Deduh/foodbot-back/internal/logger"
	tele "gopkg.in/telebot.v4"
)

// BindOptions customises how a registry is mounted on a bot.
type BindOptions struct {
	// IsAdmin guards AdminOnly commands. Required when any registered
	// command is AdminOnly.
	IsAdmin  func(c tele.Context) bool
	OnReject tele.HandlerFunc

	// SkipSetCommands leaves the provider-side command menu untouched.
	SkipSetCommands bool
}

// Bind mounts every registered command and the callback dispatcher on the
// bot, wrapped with recover and logging middleware.
func Bind(bot *tele.Bot, reg *Registry, opts BindOptions) {
	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return RecoverMiddleware(LoggerMiddleware(h))
	}

	for name, cmd := range reg.Commands() {
		handler := cmd.Handler
		if cmd.AdminOnly {
			handler = AdminGate(opts.IsAdmin, opts.OnReject)(handler)
		}
		bot.Handle(name, wrap(handler))
	}

	bot.Handle(tele.OnCallback, wrap(func(c tele.Context) error {
		key := CallbackKey(c)
		handler, ok := reg.GetCallback(key)
		if !ok || handler == nil {
			logger.TG.Debug("callback unrouted",
				slog.String("event", "tg.callback"),
				slog.String("cb_key", key),
			)
			return reg.CallbackNotFound()(c)
		}
		return handler(c)
	}))

	if fallback := reg.TextFallback(); fallback != nil {
		bot.Handle(tele.OnText, wrap(fallback))
	}

	if !opts.SkipSetCommands {
		if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
			logger.TG.Warn("set commands failed",
				slog.String("event", "tg.commands"),
				slog.String("err", err.Error()),
			)
		}
	}
}

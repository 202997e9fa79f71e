package botkit

import (
	"runtime/debug"
	"time"

	"log/slog"

	"github.com/Deduh/foodbot-back/internal/logger"
	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware catches panics in handlers and prevents the bot from crashing.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.TG.Error("panic recovered",
					slog.String("event", "tg.panic"),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return next(c)
	}
}

// LoggerMiddleware logs a single receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		err := next(c)

		attrs := []any{
			slog.String("event", "tg.update"),
			slog.Int("update_id", c.Update().ID),
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.Int64("chat_id", chat.ID))
		}
		if user := c.Sender(); user != nil {
			attrs = append(attrs, slog.Int64("user_id", user.ID))
		}
		if err != nil {
			attrs = append(attrs, slog.String("err", err.Error()))
			logger.TG.Warn("update failed", attrs...)
			return err
		}
		logger.TG.Debug("update handled", attrs...)
		return nil
	}
}

// AdminGate ensures only recognized admins can invoke downstream handlers.
// The check runs per update so demotions take effect immediately.
func AdminGate(isAdmin func(c tele.Context) bool, onReject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if isAdmin != nil && !isAdmin(c) {
				if onReject != nil {
					return onReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

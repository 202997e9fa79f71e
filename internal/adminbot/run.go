package adminbot

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/Deduh/foodbot-back/internal/botkit"
	"github.com/Deduh/foodbot-back/internal/config"
	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/telegram"
	tele "gopkg.in/telebot.v4"
)

// Run builds the admin bot, mounts the handlers, and long-polls until the
// context is done.
func Run(ctx context.Context, cfg *config.Config, h *Handlers) error {
	timeoutSec := cfg.AdminBot.LongPollTimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 10
	}

	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.AdminBot.Token,
		URL:    cfg.Provider.APIBaseURL,
		Poller: &tele.LongPoller{Timeout: time.Duration(timeoutSec) * time.Second},
		Client: telegram.BuildHTTPClient(),
	})
	if err != nil {
		return fmt.Errorf("adminbot: bot initialization failed: %w", err)
	}

	botkit.Bind(bot, h.Registry(), botkit.BindOptions{
		IsAdmin: h.isAdmin,
		OnReject: func(c tele.Context) error {
			return c.Send("Access is restricted.")
		},
	})

	logger.TG.Info("admin bot polling",
		slog.String("event", "mode"),
		slog.String("mode", "polling"),
		slog.Int("timeout_seconds", timeoutSec),
		slog.String("token", logger.TokenPrefix(cfg.AdminBot.Token)),
		slog.Duration("duration", logger.Took(buildStart)),
	)

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		return nil
	case <-runDone:
		return fmt.Errorf("adminbot: polling loop exited unexpectedly")
	}
}

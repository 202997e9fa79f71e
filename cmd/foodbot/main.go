package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"

	"github.com/Deduh/foodbot-back/internal/adminbot"
	"github.com/Deduh/foodbot-back/internal/botinstance"
	"github.com/Deduh/foodbot-back/internal/config"
	"github.com/Deduh/foodbot-back/internal/database"
	"github.com/Deduh/foodbot-back/internal/events"
	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/metrics"
	"github.com/Deduh/foodbot-back/internal/notify"
	"github.com/Deduh/foodbot-back/internal/orders"
	"github.com/Deduh/foodbot-back/internal/restbot"
	"github.com/Deduh/foodbot-back/internal/session"
	"github.com/Deduh/foodbot-back/internal/store"
	"github.com/Deduh/foodbot-back/internal/supervisor"
	"github.com/Deduh/foodbot-back/internal/telegram"
	"github.com/Deduh/foodbot-back/internal/vault"
	"github.com/Deduh/foodbot-back/internal/webhook"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("foodbot: %v", err)
	}
}

func run() error {
	startedAt := time.Now()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}
	log.Printf("loading config: %s", cfgPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := database.RunMigrations(cfg.Database); err != nil {
		return err
	}

	v, err := vault.New(cfg.VaultKey())
	if err != nil {
		return fmt.Errorf("vault init failed: %w", err)
	}

	st := store.New(db)
	gw := telegram.NewClient(cfg.Provider.APIBaseURL, telegram.BuildHTTPClient())
	bus := events.NewBus()
	m := metrics.Registry("foodbot")
	gw.Instrument(m)

	sessions := session.NewMemoryStore(time.Duration(cfg.Session.TTLMinutes) * time.Minute)
	defer sessions.Close()

	orderSvc := orders.NewService(st.Orders, st.Restaurants, st.Menu, st.Users, bus)
	engine := orders.NewEngine(st.Orders, m)

	restHandlers := restbot.NewHandlers(engine, st.Users, st.Restaurants)
	sup := supervisor.New(supervisor.Options{
		Instances: st.BotInstances,
		Vault:     v,
		Policy: supervisor.RestartPolicy{
			MaxRestarts: cfg.Supervisor.MaxRestarts,
			BaseDelay:   time.Duration(cfg.Supervisor.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Supervisor.MaxDelaySec) * time.Second,
		},
		Wire:       restHandlers.Wire,
		APIBaseURL: cfg.Provider.APIBaseURL,
		Metrics:    m,
	})

	registry := botinstance.NewRegistry(gw, v, st.BotInstances, st.Restaurants, sup, cfg.Webhook.PublicBaseURL)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("supervisor start failed: %w", err)
	}

	alerts := notify.NewDispatcher(st.BotInstances, st.Restaurants, gw, v, sup, m)
	go alerts.Run(ctx, bus.SubscribeOrderCreated())

	adminHandlers := adminbot.NewHandlers(st.Restaurants, st.Users, registry, sessions)

	srv := webhook.NewServer(cfg.Webhook.Listen, cfg.Webhook.Port, sup, orderSvc, m)

	errCh := make(chan error, 2)
	go func() { errCh <- adminbot.Run(ctx, cfg, adminHandlers) }()
	go func() { errCh <- srv.ListenAndServe() }()

	appLog := logger.Component("app")
	appLog.Info("app ready",
		slog.String("event", "ready"),
		slog.Int("bot_workers", sup.WorkerCount()),
		slog.Duration("startup_duration", logger.Took(startedAt)),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}

	appLog.Info("shutting down...", slog.String("event", "shutdown"))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("webhook server shutdown",
			slog.String("event", "shutdown"),
			slog.String("err", err.Error()),
		)
	}
	sup.Shutdown()

	return runErr
}

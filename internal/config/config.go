// Package config loads application configuration from a YAML file with an
// environment variable overlay.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/Deduh/foodbot-back/internal/database"
	"github.com/Deduh/foodbot-back/internal/logger"
)

// AdminBotConfig holds settings of the platform administration bot.
type AdminBotConfig struct {
	Token string `yaml:"token" envconfig:"ADMIN_BOT_TOKEN"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"ADMIN_BOT_LONGPOLL_TIMEOUT_SECONDS"`
}

// ProviderConfig holds messaging provider API settings.
type ProviderConfig struct {
	APIBaseURL string `yaml:"api_base_url" envconfig:"TELEGRAM_API_BASE_URL"`
}

// WebhookConfig specifies the inbound webhook server settings.
type WebhookConfig struct {
	// PublicBaseURL is the externally reachable base used to derive
	// per-instance webhook URLs.
	PublicBaseURL string `yaml:"public_base_url" envconfig:"BOT_WEBHOOK_BASE_URL"`
	Listen        string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port          int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// VaultConfig carries the bot credential encryption key.
type VaultConfig struct {
	// Key is a hex-encoded 32 byte AES key.
	Key string `yaml:"key" envconfig:"BOT_TOKEN_ENCRYPTION_KEY"`
}

// SessionConfig tunes the in-memory conversation session store.
type SessionConfig struct {
	// TTLMinutes bounds how long an abandoned session is kept; 0 disables eviction.
	TTLMinutes int `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
}

// SupervisorConfig declares the bot worker restart policy.
type SupervisorConfig struct {
	MaxRestarts int `yaml:"max_restarts" envconfig:"SUPERVISOR_MAX_RESTARTS"`
	BaseDelayMS int `yaml:"base_delay_ms" envconfig:"SUPERVISOR_BASE_DELAY_MS"`
	MaxDelaySec int `yaml:"max_delay_seconds" envconfig:"SUPERVISOR_MAX_DELAY_SECONDS"`
}

// Config aggregates all application configuration.
type Config struct {
	AdminBot   AdminBotConfig   `yaml:"admin_bot"`
	Provider   ProviderConfig   `yaml:"provider"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Vault      VaultConfig      `yaml:"vault"`
	Session    SessionConfig    `yaml:"session"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Database   database.Config  `yaml:"database"`
	Logging    logger.Config    `yaml:"logging"`
}

const defaultAPIBaseURL = "https://api.telegram.org"

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.AdminBot.Token) == "" {
		return fmt.Errorf("admin_bot.token is required")
	}
	if cfg.AdminBot.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("admin_bot.longpoll_timeout_seconds must be >= 0")
	}

	if strings.TrimSpace(cfg.Provider.APIBaseURL) == "" {
		cfg.Provider.APIBaseURL = defaultAPIBaseURL
	}
	cfg.Provider.APIBaseURL = strings.TrimRight(cfg.Provider.APIBaseURL, "/")

	if strings.TrimSpace(cfg.Webhook.PublicBaseURL) == "" {
		return fmt.Errorf("webhook.public_base_url is required")
	}
	cfg.Webhook.PublicBaseURL = strings.TrimRight(cfg.Webhook.PublicBaseURL, "/")
	if strings.TrimSpace(cfg.Webhook.Listen) == "" {
		cfg.Webhook.Listen = "0.0.0.0"
	}
	if cfg.Webhook.Port <= 0 {
		return fmt.Errorf("webhook.port must be > 0")
	}

	// The vault key is a hard startup requirement: without it no bot
	// credential can be read back.
	key, err := hex.DecodeString(strings.TrimSpace(cfg.Vault.Key))
	if err != nil {
		return fmt.Errorf("vault.key must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("vault.key must decode to 32 bytes, got %d", len(key))
	}

	if cfg.Session.TTLMinutes < 0 {
		return fmt.Errorf("session.ttl_minutes must be >= 0")
	}

	if cfg.Supervisor.MaxRestarts <= 0 {
		cfg.Supervisor.MaxRestarts = 5
	}
	if cfg.Supervisor.BaseDelayMS <= 0 {
		cfg.Supervisor.BaseDelayMS = 500
	}
	if cfg.Supervisor.MaxDelaySec <= 0 {
		cfg.Supervisor.MaxDelaySec = 60
	}

	return nil
}

// VaultKey returns the decoded AES key. Normalize must have succeeded.
func (c *Config) VaultKey() []byte {
	key, _ := hex.DecodeString(strings.TrimSpace(c.Vault.Key))
	return key
}

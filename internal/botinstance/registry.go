package botinstance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/store"
	"github.com/Deduh/foodbot-back/internal/telegram"
	"github.com/Deduh/foodbot-back/internal/vault"
)

// Gateway is the slice of the provider client the registry needs.
type Gateway interface {
	GetMe(ctx context.Context, token string) (*telegram.BotInfo, error)
	SetWebhook(ctx context.Context, token, url string) error
	DeleteWebhook(ctx context.Context, token string, dropPending bool) error
}

// InstanceStore persists bot instance rows.
type InstanceStore interface {
	Create(ctx context.Context, p store.CreateBotInstanceParams) (*store.BotInstance, error)
	Get(ctx context.Context, id string) (*store.BotInstance, error)
	GetByRestaurant(ctx context.Context, restaurantID string) (*store.BotInstance, error)
	SetFlags(ctx context.Context, id string, active, webhookSet bool) (*store.BotInstance, error)
	Delete(ctx context.Context, id string) error
}

// RestaurantGetter verifies the target restaurant exists.
type RestaurantGetter interface {
	Get(ctx context.Context, id string) (*store.Restaurant, error)
}

// Workers is the runtime side of the lifecycle: a freshly provisioned
// instance starts serving updates without a process restart, and a removed
// one stops receiving them.
type Workers interface {
	StartWorker(ctx context.Context, inst store.BotInstance) error
	StopWorker(instanceID string) error
}

// Info is the outward view of an instance. Credentials never appear here.
type Info struct {
	ID           string
	RestaurantID string
	BotUsername  string
	IsActive     bool
	IsWebhookSet bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProvisionResult distinguishes full provisioning from the partial case
// where the row exists but the webhook could not be registered.
type ProvisionResult struct {
	Instance   *Info
	WebhookSet bool
	Warning    string
}

// Registry owns the bot instance lifecycle: credential validation,
// encryption at rest, webhook registration and teardown.
type Registry struct {
	gw          Gateway
	vault       *vault.Vault
	instances   InstanceStore
	restaurants RestaurantGetter
	workers     Workers
	webhookBase string
}

func NewRegistry(gw Gateway, v *vault.Vault, instances InstanceStore, restaurants RestaurantGetter, workers Workers, webhookBase string) *Registry {
	return &Registry{
		gw:          gw,
		vault:       v,
		instances:   instances,
		restaurants: restaurants,
		workers:     workers,
		webhookBase: strings.TrimRight(webhookBase, "/"),
	}
}

// WebhookURL is the public callback URL routed to the given instance.
func (r *Registry) WebhookURL(instanceID string) string {
	return r.webhookBase + "/webhook/" + instanceID
}

// Provision validates the token with the provider, persists the encrypted
// credential, and registers the webhook. A token the provider rejects never
// reaches storage. If only the webhook step fails, the row is kept with both
// flags false and the result carries a warning instead of an error.
func (r *Registry) Provision(ctx context.Context, restaurantID, token string) (*ProvisionResult, error) {
	if _, err := r.restaurants.Get(ctx, restaurantID); err != nil {
		return nil, err
	}

	info, err := r.gw.GetMe(ctx, token)
	if err != nil {
		var pe *domain.ProviderError
		if errors.As(err, &pe) && pe.Code == 401 {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCredential, pe.Description)
		}
		return nil, fmt.Errorf("validate token: %w", err)
	}
	if info.Username == "" {
		return nil, fmt.Errorf("%w: provider returned no bot handle", domain.ErrInvalidCredential)
	}

	encrypted, err := r.vault.Encrypt(token)
	if err != nil {
		return nil, fmt.Errorf("encrypt token: %w", err)
	}

	row, err := r.instances.Create(ctx, store.CreateBotInstanceParams{
		RestaurantID:   restaurantID,
		EncryptedToken: encrypted,
		BotUsername:    info.Username,
	})
	if err != nil {
		return nil, err
	}

	log := logger.SVCBots.With(
		slog.String("instance_id", row.ID),
		slog.String("restaurant_id", restaurantID),
		slog.String("bot", info.Username),
		slog.String("token", logger.TokenPrefix(token)),
	)

	if err := r.gw.SetWebhook(ctx, token, r.WebhookURL(row.ID)); err != nil {
		log.Warn("webhook registration failed, instance kept inactive",
			slog.String("event", "bot.provision"),
			slog.String("err", err.Error()),
		)
		return &ProvisionResult{
			Instance:   infoOf(row),
			WebhookSet: false,
			Warning:    "bot registered but webhook setup failed; remove and re-add the bot to retry",
		}, nil
	}

	row, err = r.instances.SetFlags(ctx, row.ID, true, true)
	if err != nil {
		return nil, fmt.Errorf("activate instance: %w", err)
	}

	if r.workers != nil {
		if err := r.workers.StartWorker(ctx, *row); err != nil {
			log.Warn("worker start failed, instance comes up on next boot",
				slog.String("event", "bot.provision"),
				slog.String("err", err.Error()),
			)
		}
	}

	log.Info("bot instance provisioned", slog.String("event", "bot.provision"))
	return &ProvisionResult{Instance: infoOf(row), WebhookSet: true}, nil
}

// Remove tears an instance down. Webhook removal is best effort: a provider
// failure is logged and the row is deleted regardless, so a dead token can
// always be cleaned up.
func (r *Registry) Remove(ctx context.Context, instanceID string) error {
	row, err := r.instances.Get(ctx, instanceID)
	if err != nil {
		return err
	}

	log := logger.SVCBots.With(
		slog.String("instance_id", row.ID),
		slog.String("restaurant_id", row.RestaurantID),
	)

	if r.workers != nil {
		if err := r.workers.StopWorker(row.ID); err != nil {
			log.Debug("no running worker to stop",
				slog.String("event", "bot.remove"),
				slog.String("err", err.Error()),
			)
		}
	}

	token, err := r.vault.Decrypt(row.EncryptedToken)
	if err != nil {
		log.Warn("stored token unrecoverable, skipping webhook teardown",
			slog.String("event", "bot.remove"),
			slog.String("err", err.Error()),
		)
	} else if err := r.gw.DeleteWebhook(ctx, token, true); err != nil {
		log.Warn("webhook teardown failed",
			slog.String("event", "bot.remove"),
			slog.String("err", err.Error()),
		)
	}

	if err := r.instances.Delete(ctx, instanceID); err != nil {
		return err
	}
	log.Info("bot instance removed", slog.String("event", "bot.remove"))
	return nil
}

// Get returns the sanitized view of one instance.
func (r *Registry) Get(ctx context.Context, instanceID string) (*Info, error) {
	row, err := r.instances.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return infoOf(row), nil
}

// GetByRestaurant returns the sanitized view of a restaurant's instance.
func (r *Registry) GetByRestaurant(ctx context.Context, restaurantID string) (*Info, error) {
	row, err := r.instances.GetByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	return infoOf(row), nil
}

func infoOf(b *store.BotInstance) *Info {
	return &Info{
		ID:           b.ID,
		RestaurantID: b.RestaurantID,
		BotUsername:  b.BotUsername,
		IsActive:     b.IsActive,
		IsWebhookSet: b.IsWebhookSet,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

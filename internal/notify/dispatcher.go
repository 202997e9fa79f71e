// Package notify delivers new-order alerts to restaurant owners through
// their restaurant's bot.
package notify

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/Deduh/foodbot-back/internal/botkit"
	"github.com/Deduh/foodbot-back/internal/events"
	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/metrics"
	"github.com/Deduh/foodbot-back/internal/store"
	"github.com/Deduh/foodbot-back/internal/telegram"
)

// Callback keys the restaurant bot answers; the notifier only emits them.
const (
	CallbackOrderAccept  = "order_accept"
	CallbackOrderDecline = "order_decline"
)

// InstanceRepo resolves a restaurant's bot instance.
type InstanceRepo interface {
	GetByRestaurant(ctx context.Context, restaurantID string) (*store.BotInstance, error)
}

// OwnerRepo lists the owner accounts attached to a restaurant.
type OwnerRepo interface {
	Owners(ctx context.Context, restaurantID string) ([]store.User, error)
}

// Sender delivers messages on behalf of a bot token.
type Sender interface {
	SendMessage(ctx context.Context, token string, req telegram.SendMessageRequest) (*telegram.Message, error)
}

// Decryptor recovers the bot token for outbound delivery.
type Decryptor interface {
	Decrypt(stored string) (string, error)
}

// Runner reports whether an instance currently has a live worker, so alerts
// only go out through bots that can also answer the buttons.
type Runner interface {
	Running(instanceID string) bool
}

// Dispatcher consumes order.created events and fans alerts out to owners.
// Delivery is best effort: a failure for one recipient never blocks the
// others, and the order itself is already persisted.
type Dispatcher struct {
	instances InstanceRepo
	owners    OwnerRepo
	sender    Sender
	vault     Decryptor
	sup       Runner
	metrics   *metrics.Metrics
}

func NewDispatcher(instances InstanceRepo, owners OwnerRepo, sender Sender, vault Decryptor, sup Runner, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		instances: instances,
		owners:    owners,
		sender:    sender,
		vault:     vault,
		sup:       sup,
		metrics:   m,
	}
}

// Run consumes events until the context is done.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan events.OrderCreated) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			d.Notify(ctx, ev.Order)
		}
	}
}

// Notify alerts every reachable owner of the order's restaurant.
func (d *Dispatcher) Notify(ctx context.Context, order store.Order) {
	log := logger.SVCNotify.With(
		slog.String("order_id", order.ID),
		slog.String("restaurant_id", order.RestaurantID),
	)

	inst, err := d.instances.GetByRestaurant(ctx, order.RestaurantID)
	if err != nil {
		log.Warn("no bot instance, alert skipped",
			slog.String("event", "notify.order"),
			slog.String("err", err.Error()),
		)
		d.count("no_instance")
		return
	}
	if d.sup != nil && !d.sup.Running(inst.ID) {
		log.Warn("bot instance not supervised, alert skipped",
			slog.String("event", "notify.order"),
			slog.String("instance_id", inst.ID),
		)
		d.count("unsupervised")
		return
	}

	token, err := d.vault.Decrypt(inst.EncryptedToken)
	if err != nil {
		log.Error("credential unrecoverable, alert skipped",
			slog.String("event", "notify.order"),
			slog.String("instance_id", inst.ID),
			slog.String("err", err.Error()),
		)
		d.count("credential")
		return
	}

	owners, err := d.owners.Owners(ctx, order.RestaurantID)
	if err != nil {
		log.Warn("owner lookup failed, alert skipped",
			slog.String("event", "notify.order"),
			slog.String("err", err.Error()),
		)
		d.count("owner_lookup")
		return
	}

	req := telegram.SendMessageRequest{
		Text:        alertText(order),
		ParseMode:   "MarkdownV2",
		ReplyMarkup: alertKeyboard(order.ID),
	}

	sent := 0
	for _, owner := range owners {
		if !owner.TelegramChatID.Valid {
			continue
		}
		req.ChatID = owner.TelegramChatID.Int64
		if _, err := d.sender.SendMessage(ctx, token, req); err != nil {
			log.Warn("owner alert failed",
				slog.String("event", "notify.order"),
				slog.String("user_id", owner.ID),
				slog.String("err", err.Error()),
			)
			d.count("send_failed")
			continue
		}
		sent++
		d.count("sent")
	}

	if sent == 0 {
		log.Warn("no reachable owners, order awaits manual review",
			slog.String("event", "notify.order"),
			slog.Int("owners", len(owners)),
		)
		if len(owners) == 0 || allUnreachable(owners) {
			d.count("no_recipients")
		}
		return
	}
	log.Info("owners alerted",
		slog.String("event", "notify.order"),
		slog.Int("sent", sent),
	)
}

func alertText(order store.Order) string {
	text := fmt.Sprintf("🆕 *New order* `%s`\nTotal: *%s*",
		botkit.ShortID(order.ID),
		botkit.EscapeMarkdownV2(botkit.FormatAmount(order.TotalPrice)),
	)
	if order.CustomerName.Valid && order.CustomerName.String != "" {
		text += "\nCustomer: " + botkit.EscapeMarkdownV2(order.CustomerName.String)
	}
	if order.DeliveryAddress.Valid && order.DeliveryAddress.String != "" {
		text += "\nAddress: " + botkit.EscapeMarkdownV2(order.DeliveryAddress.String)
	}
	return text
}

func alertKeyboard(orderID string) *telegram.InlineKeyboard {
	return &telegram.InlineKeyboard{
		InlineKeyboard: [][]telegram.InlineButton{{
			{Text: "✅ Accept", CallbackData: "\f" + CallbackOrderAccept + "|" + orderID},
			{Text: "❌ Decline", CallbackData: "\f" + CallbackOrderDecline + "|" + orderID},
		}},
	}
}

func allUnreachable(owners []store.User) bool {
	for _, o := range owners {
		if o.TelegramChatID.Valid {
			return false
		}
	}
	return true
}

func (d *Dispatcher) count(outcome string) {
	if d.metrics != nil {
		d.metrics.Notifications.WithLabelValues(outcome).Inc()
	}
}

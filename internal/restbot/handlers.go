// Package restbot mounts the per-restaurant bot surface: owners answer new
// order alerts here and the bot drives the order lifecycle on their behalf.
package restbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"log/slog"

	"github.com/Deduh/foodbot-back/internal/botkit"
	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/notify"
	"github.com/Deduh/foodbot-back/internal/orders"
	"github.com/Deduh/foodbot-back/internal/store"
	tele "gopkg.in/telebot.v4"
)

// UserRepo resolves the pressing user into a platform account.
type UserRepo interface {
	GetByTelegramUserID(ctx context.Context, telegramUserID string) (*store.User, error)
}

// RestaurantRepo names the restaurant in the /start greeting.
type RestaurantRepo interface {
	Get(ctx context.Context, id string) (*store.Restaurant, error)
}

// Handlers carries the dependencies shared by every restaurant bot worker.
type Handlers struct {
	engine      *orders.Engine
	users       UserRepo
	restaurants RestaurantRepo
}

func NewHandlers(engine *orders.Engine, users UserRepo, restaurants RestaurantRepo) *Handlers {
	return &Handlers{engine: engine, users: users, restaurants: restaurants}
}

// Wire mounts the handlers for one restaurant's bot instance. The supervisor
// calls it once per worker start.
func (h *Handlers) Wire(bot *tele.Bot, inst store.BotInstance) {
	reg := botkit.NewRegistry()
	reg.RegisterCommand("/start", botkit.Command{
		Handler:     h.start(inst),
		Description: "Show what this bot is for",
	})
	reg.RegisterCallback(notify.CallbackOrderAccept, h.decide(inst, store.StatusConfirmed, "Order confirmed"))
	reg.RegisterCallback(notify.CallbackOrderDecline, h.decide(inst, store.StatusCancelledByRestaurant, "Order declined"))

	// The worker has no business registering a command menu on every restart.
	botkit.Bind(bot, reg, botkit.BindOptions{SkipSetCommands: true})
}

func (h *Handlers) start(inst store.BotInstance) tele.HandlerFunc {
	return func(c tele.Context) error {
		name := "this restaurant"
		if r, err := h.restaurants.Get(context.Background(), inst.RestaurantID); err == nil {
			name = r.Name
		}
		return c.Send(fmt.Sprintf("This bot delivers order alerts for %s. Owners accept or decline orders right from the alert message.", name))
	}
}

// decide turns an alert button press into an order transition. The press is
// authorized against the pressing user's account, not the chat it arrived in.
func (h *Handlers) decide(inst store.BotInstance, next store.OrderStatus, verdict string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := context.Background()

		orderID, err := botkit.PayloadID(c)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
		}

		sender := c.Sender()
		if sender == nil {
			return c.Respond(&tele.CallbackResponse{Text: "Unrecognized sender"})
		}
		actor, err := h.resolveActor(ctx, sender.ID, inst)
		if err != nil {
			logger.BOT.Warn("order decision rejected",
				slog.String("event", "restbot.decide"),
				slog.String("order_id", orderID),
				slog.Int64("tg_user_id", sender.ID),
				slog.String("err", err.Error()),
			)
			return c.Respond(&tele.CallbackResponse{Text: "You are not an owner of this restaurant"})
		}

		order, err := h.engine.Transition(ctx, orderID, next, actor)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: decisionError(err)})
		}

		text := fmt.Sprintf("%s\n\n%s: order `%s`, total *%s*",
			verdict,
			botkit.EscapeMarkdownV2(string(order.Status)),
			botkit.ShortID(order.ID),
			botkit.EscapeMarkdownV2(botkit.FormatAmount(order.TotalPrice)),
		)
		if err := c.Edit(text, tele.ModeMarkdownV2); err != nil {
			logger.BOT.Warn("alert edit failed",
				slog.String("event", "restbot.decide"),
				slog.String("order_id", orderID),
				slog.String("err", err.Error()),
			)
		}
		return c.Respond(&tele.CallbackResponse{Text: verdict})
	}
}

// resolveActor maps the Telegram user to an owner of this bot's restaurant.
func (h *Handlers) resolveActor(ctx context.Context, telegramUserID int64, inst store.BotInstance) (orders.Actor, error) {
	user, err := h.users.GetByTelegramUserID(ctx, strconv.FormatInt(telegramUserID, 10))
	if err != nil {
		return orders.Actor{}, err
	}
	if !user.IsActive {
		return orders.Actor{}, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
	}
	actor := orders.Actor{UserID: user.ID, Role: user.Role}
	if user.RestaurantID.Valid {
		actor.RestaurantID = user.RestaurantID.String
	}
	if user.Role == store.RoleRestaurantOwner && actor.RestaurantID != inst.RestaurantID {
		return orders.Actor{}, fmt.Errorf("owner of a different restaurant: %w", domain.ErrForbidden)
	}
	return actor, nil
}

func decisionError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "Order no longer exists"
	case errors.Is(err, domain.ErrForbidden):
		return "You are not allowed to manage this order"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Order already moved on"
	default:
		return "Something went wrong, try again"
	}
}

// Package adminbot is the platform operators' bot: restaurant and user
// administration, bot token assignment, and the create-restaurant wizard.
package adminbot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"log/slog"

	"github.com/Deduh/foodbot-back/internal/botinstance"
	"github.com/Deduh/foodbot-back/internal/botkit"
	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/session"
	"github.com/Deduh/foodbot-back/internal/store"
	tele "gopkg.in/telebot.v4"
)

// RestaurantRepo is the restaurant surface the admin bot manages.
type RestaurantRepo interface {
	Get(ctx context.Context, id string) (*store.Restaurant, error)
	List(ctx context.Context) ([]store.Restaurant, error)
	Create(ctx context.Context, p store.CreateRestaurantParams) (*store.Restaurant, error)
	Update(ctx context.Context, id string, p store.UpdateRestaurantParams) (*store.Restaurant, error)
	Delete(ctx context.Context, id string) error
	Owners(ctx context.Context, restaurantID string) ([]store.User, error)
}

// UserRepo is the account surface the admin bot manages.
type UserRepo interface {
	Get(ctx context.Context, id string) (*store.User, error)
	List(ctx context.Context) ([]store.User, error)
	GetByTelegramUserID(ctx context.Context, telegramUserID string) (*store.User, error)
	Update(ctx context.Context, id string, p store.UpdateUserParams) (*store.User, error)
	IsAdmin(ctx context.Context, telegramUserID string) (bool, error)
}

// BotRegistry provisions and removes restaurant bot instances.
type BotRegistry interface {
	Provision(ctx context.Context, restaurantID, token string) (*botinstance.ProvisionResult, error)
	Remove(ctx context.Context, instanceID string) error
	GetByRestaurant(ctx context.Context, restaurantID string) (*botinstance.Info, error)
}

// Handlers routes every admin action. All privileged paths re-check the
// sender against the users table, so revoking ADMIN takes effect at once.
type Handlers struct {
	restaurants RestaurantRepo
	users       UserRepo
	bots        BotRegistry
	sessions    session.Store
}

func NewHandlers(restaurants RestaurantRepo, users UserRepo, bots BotRegistry, sessions session.Store) *Handlers {
	return &Handlers{
		restaurants: restaurants,
		users:       users,
		bots:        bots,
		sessions:    sessions,
	}
}

// Registry builds the command and callback table for the admin bot.
func (h *Handlers) Registry() *botkit.Registry {
	reg := botkit.NewRegistry()

	reg.RegisterCommand("/start", botkit.Command{Handler: h.onStart, Description: "Open the admin menu"})
	reg.RegisterCommand("/help", botkit.Command{Handler: h.onStart, Description: "Open the admin menu", Hidden: true})
	reg.RegisterCommand("/whoami", botkit.Command{Handler: h.onWhoAmI, Description: "Show who the platform thinks you are"})
	reg.RegisterCommand("/cancel", botkit.Command{Handler: h.onCancel, Description: "Abort the current flow", Hidden: true})

	for key, handler := range map[string]tele.HandlerFunc{
		cbMainMenu:        h.onMainMenu,
		cbRestaurantsMenu: h.onRestaurantsMenu,
		cbUsersMenu:       h.onUsersMenu,
		cbShowProfile:     h.onShowProfile,

		cbListRestaurants:  h.privileged(h.onListRestaurants),
		cbCreateRestaurant: h.privileged(h.onCreateRestaurant),
		cbViewRestaurant:   h.privileged(h.onViewRestaurant),
		cbEditRestaurant:   h.privileged(h.onEditRestaurant),
		cbToggleStatus:     h.privileged(h.onToggleStatus),
		cbEditName:         h.privileged(h.editFieldPrompt(session.PromptEditName, "Enter the new restaurant name:")),
		cbEditEmail:        h.privileged(h.editFieldPrompt(session.PromptEditEmail, "Enter the new contact email:")),
		cbEditPhone:        h.privileged(h.editFieldPrompt(session.PromptEditPhone, "Enter the new contact phone:")),
		cbManageBot:        h.privileged(h.onManageBot),
		cbAssignToken:      h.privileged(h.onAssignToken),
		cbUnlinkBot:        h.privileged(h.onUnlinkBot),
		cbDeletePrompt:     h.privileged(h.onDeletePrompt),
		cbDeleteConfirm:    h.privileged(h.onDeleteConfirm),

		cbListUsers:    h.privileged(h.onListUsers),
		cbViewUser:     h.privileged(h.onViewUser),
		cbChangeStatus: h.privileged(h.onChangeUserStatus),
		cbChangeRole:   h.privileged(h.onChangeRolePrompt),
		cbSetRole:      h.privileged(h.onSetRole),

		cbSelectOwner:   h.privileged(h.onSelectOwner),
		cbConfirmCreate: h.privileged(h.onConfirmCreate),
		cbCancelCreate:  h.privileged(h.onCancelCreate),
	} {
		if err := reg.RegisterCallback(key, handler); err != nil {
			logger.BOT.Error("admin callback registration failed",
				slog.String("event", "adminbot.setup"),
				slog.String("key", key),
				slog.String("err", err.Error()),
			)
		}
	}

	reg.SetTextFallback(h.onText)
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "This menu has expired. Send /start for a fresh one."})
	})
	return reg
}

// isAdmin resolves the sender against the users table.
func (h *Handlers) isAdmin(c tele.Context) bool {
	sender := c.Sender()
	if sender == nil {
		return false
	}
	ok, err := h.users.IsAdmin(context.Background(), strconv.FormatInt(sender.ID, 10))
	if err != nil {
		logger.BOT.Warn("admin check failed",
			slog.String("event", "adminbot.auth"),
			slog.Int64("tg_user_id", sender.ID),
			slog.String("err", err.Error()),
		)
		return false
	}
	return ok
}

// privileged refuses non-admins with transient feedback and no mutation.
func (h *Handlers) privileged(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !h.isAdmin(c) {
			return c.Respond(&tele.CallbackResponse{Text: "Access denied."})
		}
		return next(c)
	}
}

func (h *Handlers) onStart(c tele.Context) error {
	if h.isAdmin(c) {
		return c.Send("Welcome, administrator. Pick an action:", mainMenu())
	}
	return c.Send("Hello! This bot administers the platform. Access is restricted.")
}

func (h *Handlers) onMainMenu(c tele.Context) error {
	if err := c.Edit("Main menu. Pick an action:", mainMenu()); err != nil {
		logger.BOT.Warn("menu edit failed",
			slog.String("event", "adminbot.menu"),
			slog.String("err", err.Error()),
		)
	}
	return c.Respond()
}

func (h *Handlers) onRestaurantsMenu(c tele.Context) error {
	if err := c.Edit("Restaurant management:", restaurantsMenu()); err != nil {
		logger.BOT.Warn("menu edit failed",
			slog.String("event", "adminbot.menu"),
			slog.String("err", err.Error()),
		)
	}
	return c.Respond()
}

func (h *Handlers) onUsersMenu(c tele.Context) error {
	if err := c.Edit("User management:", usersMenu()); err != nil {
		logger.BOT.Warn("menu edit failed",
			slog.String("event", "adminbot.menu"),
			slog.String("err", err.Error()),
		)
	}
	return c.Respond()
}

func (h *Handlers) onListRestaurants(c tele.Context) error {
	restaurants, err := h.restaurants.List(context.Background())
	if err != nil {
		_ = c.Edit("Could not load the restaurant list.", backToRestaurantsMenu())
		return c.Respond()
	}
	if len(restaurants) == 0 {
		_ = c.Edit("No restaurants yet.", backToRestaurantsMenu())
		return c.Respond()
	}
	_ = c.Edit("Pick a restaurant to manage:", restaurantsList(restaurants))
	return c.Respond()
}

func (h *Handlers) onViewRestaurant(c tele.Context) error {
	id, err := botkit.PayloadID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	return h.showRestaurant(c, id, singleRestaurantMenu(id))
}

// showRestaurant renders the restaurant card into the current message.
func (h *Handlers) showRestaurant(c tele.Context, id string, markup *tele.ReplyMarkup) error {
	ctx := context.Background()
	restaurant, err := h.restaurants.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = c.Edit("Restaurant not found. It may have been deleted.", backToRestaurantList())
			return c.Respond()
		}
		logger.BOT.Error("restaurant fetch failed",
			slog.String("event", "adminbot.restaurant"),
			slog.String("restaurant_id", id),
			slog.String("err", err.Error()),
		)
		_ = c.Edit("Could not load restaurant data.", backToRestaurantList())
		return c.Respond()
	}
	owners, err := h.restaurants.Owners(ctx, id)
	if err != nil {
		owners = nil
	}
	_ = c.Edit(restaurantView(restaurant, owners), markup, tele.ModeMarkdownV2)
	return c.Respond()
}

func (h *Handlers) onEditRestaurant(c tele.Context) error {
	id, err := botkit.PayloadID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	restaurant, err := h.restaurants.Get(context.Background(), id)
	if err != nil {
		_ = c.Edit("Restaurant not found.", backToRestaurantList())
		return c.Respond()
	}
	_ = c.Edit(restaurantView(restaurant, nil), editRestaurantMenu(restaurant), tele.ModeMarkdownV2)
	return c.Respond()
}

func (h *Handlers) onToggleStatus(c tele.Context) error {
	id, err := botkit.PayloadID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	ctx := context.Background()
	restaurant, err := h.restaurants.Get(ctx, id)
	if err != nil {
		_ = c.Edit("Restaurant not found.", backToRestaurantList())
		return c.Respond()
	}
	next := !restaurant.IsActive
	updated, err := h.restaurants.Update(ctx, id, store.UpdateRestaurantParams{IsActive: &next})
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Could not change the status."})
	}
	_ = c.Edit(restaurantView(updated, nil), editRestaurantMenu(updated), tele.ModeMarkdownV2)
	return c.Respond(&tele.CallbackResponse{Text: "Status updated"})
}

// editFieldPrompt starts an ad-hoc prompt: the admin's next text message
// becomes the field value. Starting a new prompt replaces any previous state.
func (h *Handlers) editFieldPrompt(action session.PromptAction, promptText string) tele.HandlerFunc {
	return func(c tele.Context) error {
		id, err := botkit.PayloadID(c)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
		}
		menuMsg := c.Callback().Message
		if menuMsg == nil {
			return c.Respond(&tele.CallbackResponse{Text: "Something went wrong."})
		}

		prompt, err := c.Bot().Send(c.Chat(), promptText, botkit.ForceReply())
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "Could not send the prompt."})
		}

		h.sessions.Put(c.Sender().ID, session.AdHocPrompt{
			Action:          action,
			RestaurantID:    id,
			ChatID:          c.Chat().ID,
			MenuMessageID:   menuMsg.ID,
			PromptMessageID: prompt.ID,
		})
		return c.Respond()
	}
}

func (h *Handlers) onManageBot(c tele.Context) error {
	id, err := botkit.PayloadID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	_, instErr := h.bots.GetByRestaurant(context.Background(), id)
	_ = c.Edit("Bot management:", botManagementMenu(id, instErr == nil))
	return c.Respond()
}

func (h *Handlers) onAssignToken(c tele.Context) error {
	return h.editFieldPrompt(session.PromptAssignToken, "Send the bot token for this restaurant.")(c)
}

func (h *Handlers) onUnlinkBot(c tele.Context) error {
	id, err := botkit.PayloadID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	ctx := context.Background()
	inst, err := h.bots.GetByRestaurant(ctx, id)
	if err != nil {
		_ = c.Edit("This restaurant has no bot attached.", botManagementMenu(id, false))
		return c.Respond()
	}
	if err := h.bots.Remove(ctx, inst.ID); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Could not unlink the bot."})
	}
	_ = c.Edit("🗑 Bot unlinked.\n\nBot management:", botManagementMenu(id, false))
	return c.Respond(&tele.CallbackResponse{Text: "Bot unlinked"})
}

func (h *Handlers) onDeletePrompt(c tele.Context) error {
	id, err := botkit.PayloadID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	_ = c.Edit("Delete this restaurant? The action cannot be undone.", deleteConfirmationMenu(id))
	return c.Respond()
}

func (h *Handlers) onDeleteConfirm(c tele.Context) error {
	id, err := botkit.PayloadID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	ctx := context.Background()

	// Tear the bot down first so its webhook is de-registered; the row alone
	// would die with the restaurant via the FK cascade, the webhook would not.
	if inst, instErr := h.bots.GetByRestaurant(ctx, id); instErr == nil {
		if rmErr := h.bots.Remove(ctx, inst.ID); rmErr != nil {
			logger.BOT.Warn("bot teardown before restaurant delete failed",
				slog.String("event", "adminbot.restaurant"),
				slog.String("restaurant_id", id),
				slog.String("instance_id", inst.ID),
				slog.String("err", rmErr.Error()),
			)
		}
	}

	if err := h.restaurants.Delete(ctx, id); err != nil {
		logger.BOT.Error("restaurant delete failed",
			slog.String("event", "adminbot.restaurant"),
			slog.String("restaurant_id", id),
			slog.String("err", err.Error()),
		)
		_ = c.Edit("❌ Could not delete the restaurant.", backToRestaurantList())
		return c.Respond()
	}
	_ = c.Respond(&tele.CallbackResponse{Text: "✅ Restaurant deleted."})
	return h.onListRestaurants(c)
}

func (h *Handlers) onListUsers(c tele.Context) error {
	users, err := h.users.List(context.Background())
	if err != nil {
		_ = c.Edit("Could not load the user list.", usersMenu())
		return c.Respond()
	}
	if len(users) == 0 {
		_ = c.Edit("No users yet.", usersMenu())
		return c.Respond()
	}
	_ = c.Edit("Pick a user to view:", usersList(users))
	return c.Respond()
}

func (h *Handlers) onViewUser(c tele.Context) error {
	id, err := botkit.PayloadID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	return h.showUser(c, id)
}

func (h *Handlers) showUser(c tele.Context, id string) error {
	ctx := context.Background()
	user, err := h.users.Get(ctx, id)
	if err != nil {
		_ = c.Edit("User not found.", usersMenu())
		return c.Respond()
	}
	restaurantName := ""
	if user.RestaurantID.Valid {
		if r, err := h.restaurants.Get(ctx, user.RestaurantID.String); err == nil {
			restaurantName = r.Name
		}
	}
	_ = c.Edit(userView(user, restaurantName), userViewMenu(user), tele.ModeMarkdownV2)
	return c.Respond()
}

func (h *Handlers) onChangeUserStatus(c tele.Context) error {
	id, err := botkit.PayloadID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	ctx := context.Background()
	user, err := h.users.Get(ctx, id)
	if err != nil {
		_ = c.Edit("User not found.", usersMenu())
		return c.Respond()
	}
	next := !user.IsActive
	if _, err := h.users.Update(ctx, id, store.UpdateUserParams{IsActive: &next}); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Could not change the status."})
	}
	return h.showUser(c, id)
}

func (h *Handlers) onChangeRolePrompt(c tele.Context) error {
	id, err := botkit.PayloadID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	_ = c.Edit("Pick the user's new role:", roleSelectionMenu(id))
	return c.Respond()
}

// onSetRole parses the compound "<userId>:<ROLE>" payload at the boundary.
func (h *Handlers) onSetRole(c tele.Context) error {
	parts, err := botkit.PayloadParts(c, ":")
	if err != nil || len(parts) != 2 {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	userID, role := parts[0], store.UserRole(parts[1])
	switch role {
	case store.RoleAdmin, store.RoleRestaurantOwner, store.RoleCustomer:
	default:
		return c.Respond(&tele.CallbackResponse{Text: "Unknown role"})
	}
	if _, err := h.users.Update(context.Background(), userID, store.UpdateUserParams{Role: &role}); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Could not change the role."})
	}
	return h.showUser(c, userID)
}

func (h *Handlers) onShowProfile(c tele.Context) error {
	text := h.whoAmIText(c)
	_ = c.Edit(text, backToMainMenu(), tele.ModeMarkdownV2)
	return c.Respond()
}

func (h *Handlers) onWhoAmI(c tele.Context) error {
	return c.Send(h.whoAmIText(c), tele.ModeMarkdownV2)
}

func (h *Handlers) whoAmIText(c tele.Context) string {
	sender := c.Sender()
	if sender == nil {
		return "Could not identify you\\."
	}
	user, err := h.users.GetByTelegramUserID(context.Background(), strconv.FormatInt(sender.ID, 10))
	switch {
	case err == nil && user.Role == store.RoleAdmin:
		return "*You are authorized as ADMIN*\nEmail: " +
			botkit.EscapeMarkdownV2(orEmpty(user.Email.String, "not set")) +
			"\nTelegram ID: `" + user.TelegramUserID.String + "`"
	case err == nil:
		return "*Your account exists, but your role is " + string(user.Role) + ", not ADMIN*\nTelegram ID: `" +
			user.TelegramUserID.String + "`"
	default:
		return "*Your account is not registered*\nYour Telegram ID: `" + strconv.FormatInt(sender.ID, 10) + "`"
	}
}

// onText feeds the sender's pending session, if any. Text from admins with
// no pending state is ignored.
func (h *Handlers) onText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	sess, ok := h.sessions.Get(sender.ID)
	if !ok {
		return nil
	}
	switch s := sess.(type) {
	case session.AdHocPrompt:
		if !h.isAdmin(c) {
			h.sessions.Clear(sender.ID)
			return nil
		}
		return h.resolvePrompt(c, s)
	case session.Wizard:
		return h.wizardText(c, s)
	default:
		h.sessions.Clear(sender.ID)
		return nil
	}
}

// resolvePrompt consumes the admin's answer to a pending ad-hoc prompt.
// State is cleared even when the mutation fails, so the admin is never
// stuck behind a dangling prompt.
func (h *Handlers) resolvePrompt(c tele.Context, s session.AdHocPrompt) error {
	ctx := context.Background()
	sender := c.Sender()
	answer := strings.TrimSpace(c.Text())
	h.sessions.Clear(sender.ID)

	if s.Action == session.PromptAssignToken {
		return h.resolveTokenPrompt(c, s, answer)
	}

	params := store.UpdateRestaurantParams{}
	switch s.Action {
	case session.PromptEditName:
		params.Name = &answer
	case session.PromptEditEmail:
		params.ContactEmail = &answer
	case session.PromptEditPhone:
		params.ContactPhone = &answer
	default:
		return nil
	}

	updated, err := h.restaurants.Update(ctx, s.RestaurantID, params)
	h.deleteMessages(c, s.ChatID, s.PromptMessageID, c.Message().ID)
	if err != nil {
		logger.BOT.Error("restaurant field update failed",
			slog.String("event", "adminbot.prompt"),
			slog.String("restaurant_id", s.RestaurantID),
			slog.String("action", string(s.Action)),
			slog.String("err", err.Error()),
		)
		return h.editStored(c, s.ChatID, s.MenuMessageID, "❌ Could not update the restaurant.", backToRestaurantList())
	}
	return h.editStored(c, s.ChatID, s.MenuMessageID,
		restaurantView(updated, nil), editRestaurantMenu(updated), tele.ModeMarkdownV2)
}

// resolveTokenPrompt validates and provisions the supplied bot token.
// The raw token is deleted from the chat no matter what happens.
func (h *Handlers) resolveTokenPrompt(c tele.Context, s session.AdHocPrompt, token string) error {
	ctx := context.Background()

	working, _ := c.Bot().Send(c.Chat(), "⏳ Validating the token...")

	var result string
	res, err := h.bots.Provision(ctx, s.RestaurantID, token)
	switch {
	case err != nil:
		result = "❌ " + provisionError(err)
	case !res.WebhookSet:
		result = "⚠️ " + res.Warning
	default:
		result = "✅ Bot @" + res.Instance.BotUsername + " attached!"
	}

	ids := []int{s.PromptMessageID, c.Message().ID}
	if working != nil {
		ids = append(ids, working.ID)
	}
	h.deleteMessages(c, s.ChatID, ids...)

	hasBot := err == nil
	return h.editStored(c, s.ChatID, s.MenuMessageID,
		result+"\n\nBot management:", botManagementMenu(s.RestaurantID, hasBot))
}

func provisionError(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredential):
		return "The provider rejected this token."
	case errors.Is(err, domain.ErrConflict):
		return "This token or restaurant already has a bot attached."
	case errors.Is(err, domain.ErrNotFound):
		return "The restaurant no longer exists."
	default:
		return "Could not attach the bot: " + err.Error()
	}
}

// deleteMessages removes transient chat messages best effort; a single
// undeletable message never blocks the rest of the flow.
func (h *Handlers) deleteMessages(c tele.Context, chatID int64, ids ...int) {
	for _, id := range ids {
		if id == 0 {
			continue
		}
		msg := tele.StoredMessage{MessageID: strconv.Itoa(id), ChatID: chatID}
		if err := c.Bot().Delete(msg); err != nil {
			logger.BOT.Debug("message cleanup failed",
				slog.String("event", "adminbot.cleanup"),
				slog.Int("message_id", id),
				slog.String("err", err.Error()),
			)
		}
	}
}

// editStored rewrites a message by id, falling back to a fresh reply when
// the original cannot be edited any more.
func (h *Handlers) editStored(c tele.Context, chatID int64, messageID int, text string, opts ...any) error {
	msg := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	if _, err := c.Bot().Edit(msg, text, opts...); err != nil {
		return c.Send(text, opts...)
	}
	return nil
}

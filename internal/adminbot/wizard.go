package adminbot

import (
	"context"

	"log/slog"

	"github.com/Deduh/foodbot-back/internal/botkit"
	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/session"
	"github.com/Deduh/foodbot-back/internal/store"
	tele "gopkg.in/telebot.v4"
)

// onCreateRestaurant enters the create-restaurant wizard. The wizard state
// replaces whatever session the admin had.
func (h *Handlers) onCreateRestaurant(c tele.Context) error {
	menuMsg := c.Callback().Message
	if menuMsg == nil {
		return c.Respond(&tele.CallbackResponse{Text: "Something went wrong."})
	}

	w := session.Wizard{
		Step:          session.StepName,
		ChatID:        c.Chat().ID,
		MenuMessageID: menuMsg.ID,
	}
	prompt, err := c.Bot().Send(c.Chat(), "Enter the name of the new restaurant. Send /cancel to abort.")
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Could not start the flow."})
	}
	w.Cleanup = append(w.Cleanup, prompt.ID)
	h.sessions.Put(c.Sender().ID, w)
	return c.Respond()
}

// wizardText advances the wizard with the admin's next message. The message
// and the follow-up prompt both join the cleanup list.
func (h *Handlers) wizardText(c tele.Context, w session.Wizard) error {
	text := c.Text()
	if text == "/cancel" {
		return h.cancelWizard(c, &w)
	}
	w.Cleanup = append(w.Cleanup, c.Message().ID)

	switch w.Step {
	case session.StepName:
		w.Draft.Name = text
		w.Step = session.StepEmail
		return h.wizardPrompt(c, w, "Got it. Now enter the contact email.")

	case session.StepEmail:
		w.Draft.ContactEmail = text
		w.Step = session.StepPhone
		return h.wizardPrompt(c, w, "Noted. Now enter the contact phone.")

	case session.StepPhone:
		w.Draft.ContactPhone = text
		return h.wizardOwnerStep(c, w)

	default:
		// Waiting for a button press; free text is collected for cleanup only.
		h.sessions.Put(c.Sender().ID, w)
		return nil
	}
}

func (h *Handlers) wizardPrompt(c tele.Context, w session.Wizard, text string, opts ...any) error {
	prompt, err := c.Bot().Send(c.Chat(), text, opts...)
	if err != nil {
		h.sessions.Clear(c.Sender().ID)
		return c.Send("Something went wrong, the flow was aborted.", mainMenu())
	}
	w.Cleanup = append(w.Cleanup, prompt.ID)
	h.sessions.Put(c.Sender().ID, w)
	return nil
}

// wizardOwnerStep aborts when no account can own the restaurant; otherwise
// it presents the pick list.
func (h *Handlers) wizardOwnerStep(c tele.Context, w session.Wizard) error {
	users, err := h.users.List(context.Background())
	if err != nil {
		h.sessions.Clear(c.Sender().ID)
		return c.Send("Could not load user accounts, the flow was aborted.", mainMenu())
	}
	if len(users) == 0 {
		h.cleanupMessages(c, &w)
		h.sessions.Clear(c.Sender().ID)
		return c.Send("There are no accounts to assign as the owner. Create a user first.", restaurantsMenu())
	}
	w.Step = session.StepOwner
	return h.wizardPrompt(c, w, "Now pick the owner for this restaurant:", ownerPickList(users))
}

// onSelectOwner records the picked owner and shows the confirmation card.
func (h *Handlers) onSelectOwner(c tele.Context) error {
	sender := c.Sender()
	w, ok := h.wizardState(sender.ID)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "This flow has expired."})
	}

	ownerID, err := botkit.PayloadID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button data"})
	}
	owner, err := h.users.Get(context.Background(), ownerID)
	if err != nil {
		h.sessions.Clear(sender.ID)
		_ = c.Send("The picked user no longer exists. Start over.", restaurantsMenu())
		return c.Respond()
	}

	w.Draft.OwnerID = ownerID
	w.Step = session.StepConfirm

	summary := draftSummary(draftView{
		Name:         w.Draft.Name,
		ContactEmail: w.Draft.ContactEmail,
		ContactPhone: w.Draft.ContactPhone,
		OwnerName:    owner.DisplayName(),
	})
	confirm, err := c.Bot().Send(c.Chat(), summary, confirmCreateMenu(), tele.ModeMarkdownV2)
	if err != nil {
		h.sessions.Clear(sender.ID)
		return c.Respond(&tele.CallbackResponse{Text: "Something went wrong."})
	}
	w.Cleanup = append(w.Cleanup, confirm.ID)
	h.sessions.Put(sender.ID, *w)
	return c.Respond()
}

// onConfirmCreate performs the create. Confirming without a picked owner is
// a state error, not a malformed restaurant.
func (h *Handlers) onConfirmCreate(c tele.Context) error {
	sender := c.Sender()
	w, ok := h.wizardState(sender.ID)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "This flow has expired."})
	}
	if w.Draft.OwnerID == "" {
		h.sessions.Clear(sender.ID)
		_ = c.Send("No owner was picked. Start over.", restaurantsMenu())
		return c.Respond()
	}

	_, err := h.restaurants.Create(context.Background(), store.CreateRestaurantParams{
		Name:         w.Draft.Name,
		ContactEmail: w.Draft.ContactEmail,
		ContactPhone: w.Draft.ContactPhone,
		OwnerID:      w.Draft.OwnerID,
	})
	if menuMsg := c.Callback().Message; menuMsg != nil {
		w.Cleanup = append(w.Cleanup, menuMsg.ID)
	}
	h.cleanupMessages(c, w)
	h.sessions.Clear(sender.ID)

	if err != nil {
		logger.BOT.Error("restaurant create failed",
			slog.String("event", "adminbot.wizard"),
			slog.String("err", err.Error()),
		)
		return h.editStored(c, w.ChatID, w.MenuMessageID,
			"❌ Could not create the restaurant.", restaurantsMenu())
	}
	return h.editStored(c, w.ChatID, w.MenuMessageID,
		"✅ Restaurant created!\n\nRestaurant management:", restaurantsMenu())
}

func (h *Handlers) onCancelCreate(c tele.Context) error {
	sender := c.Sender()
	w, ok := h.wizardState(sender.ID)
	if !ok {
		_ = c.Send("Nothing to cancel. Main menu:", mainMenu())
		return c.Respond()
	}
	if menuMsg := c.Callback().Message; menuMsg != nil {
		w.Cleanup = append(w.Cleanup, menuMsg.ID)
	}
	err := h.finishCancel(c, w)
	_ = c.Respond()
	return err
}

// onCancel is the /cancel command. Missing state is recoverable: the admin
// just gets the main menu back.
func (h *Handlers) onCancel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	w, ok := h.wizardState(sender.ID)
	if !ok {
		h.sessions.Clear(sender.ID)
		return c.Send("Nothing to cancel. Main menu:", mainMenu())
	}
	if msg := c.Message(); msg != nil {
		w.Cleanup = append(w.Cleanup, msg.ID)
	}
	return h.finishCancel(c, w)
}

func (h *Handlers) cancelWizard(c tele.Context, w *session.Wizard) error {
	if msg := c.Message(); msg != nil {
		w.Cleanup = append(w.Cleanup, msg.ID)
	}
	return h.finishCancel(c, w)
}

func (h *Handlers) finishCancel(c tele.Context, w *session.Wizard) error {
	h.cleanupMessages(c, w)
	h.sessions.Clear(c.Sender().ID)
	return h.editStored(c, w.ChatID, w.MenuMessageID,
		"Creation cancelled. Restaurant management:", restaurantsMenu())
}

// cleanupMessages deletes every collected wizard message, best effort.
func (h *Handlers) cleanupMessages(c tele.Context, w *session.Wizard) {
	h.deleteMessages(c, w.ChatID, w.Cleanup...)
	w.Cleanup = nil
}

// wizardState fetches the sender's session only when it is a wizard.
func (h *Handlers) wizardState(adminID int64) (*session.Wizard, bool) {
	sess, ok := h.sessions.Get(adminID)
	if !ok {
		return nil, false
	}
	w, ok := sess.(session.Wizard)
	if !ok {
		return nil, false
	}
	return &w, true
}

// Package session is the in-memory conversation state store for the admin
// bot. State is keyed purely by administrator Telegram user id; an admin
// writing from two chats at once races last-writer-wins.
package session

// PromptAction enumerates what a pending ad-hoc prompt expects next.
type PromptAction string

const (
	PromptEditName    PromptAction = "edit_restaurant_name"
	PromptEditEmail   PromptAction = "edit_restaurant_email"
	PromptEditPhone   PromptAction = "edit_restaurant_phone"
	PromptAssignToken PromptAction = "assign_bot_token"
)

// WizardStep is the strictly forward-moving cursor of the create-restaurant flow.
type WizardStep int

const (
	StepName WizardStep = iota
	StepEmail
	StepPhone
	StepOwner
	StepConfirm
)

// Session is the sealed variant held per administrator: exactly one of
// AdHocPrompt or Wizard, never both.
type Session interface {
	sessionVariant()
}

// AdHocPrompt expects one free-text reply that resolves the stored action.
type AdHocPrompt struct {
	Action          PromptAction
	RestaurantID    string
	ChatID          int64
	MenuMessageID   int
	PromptMessageID int
}

func (AdHocPrompt) sessionVariant() {}

// RestaurantDraft accumulates wizard fields before the final create.
type RestaurantDraft struct {
	Name         string
	ContactEmail string
	ContactPhone string
	OwnerID      string
}

// Wizard is the structured multi-step create-restaurant flow.
type Wizard struct {
	Step          WizardStep
	Draft         RestaurantDraft
	ChatID        int64
	MenuMessageID int
	// Cleanup lists message ids deleted on completion or cancellation.
	Cleanup []int
}

func (Wizard) sessionVariant() {}

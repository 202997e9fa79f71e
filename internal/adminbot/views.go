package adminbot

import (
	"fmt"
	"strings"

	"github.com/Deduh/foodbot-back/internal/botkit"
	"github.com/Deduh/foodbot-back/internal/store"
)

func orEmpty(s string, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func statusLabel(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}

func restaurantView(r *store.Restaurant, owners []store.User) string {
	ownersText := "not assigned"
	if len(owners) > 0 {
		names := make([]string, len(owners))
		for i, o := range owners {
			names[i] = botkit.EscapeMarkdownV2(o.DisplayName())
		}
		ownersText = strings.Join(names, ", ")
	}
	return fmt.Sprintf(
		"*Restaurant: %s*\nID: `%s`\nStatus: %s\nEmail: %s\nPhone: %s\nOwner: %s",
		botkit.EscapeMarkdownV2(r.Name),
		r.ID,
		statusLabel(r.IsActive),
		botkit.EscapeMarkdownV2(orEmpty(r.ContactEmail.String, "not set")),
		botkit.EscapeMarkdownV2(orEmpty(r.ContactPhone.String, "not set")),
		ownersText,
	)
}

func userView(u *store.User, restaurantName string) string {
	return fmt.Sprintf(
		"*User: %s*\nID: `%s`\nTelegram ID: `%s`\nRole: `%s`\nStatus: %s\nRestaurant: %s",
		botkit.EscapeMarkdownV2(u.DisplayName()),
		u.ID,
		u.TelegramUserID.String,
		u.Role,
		statusLabel(u.IsActive),
		botkit.EscapeMarkdownV2(orEmpty(restaurantName, "not assigned")),
	)
}

func draftSummary(d draftView) string {
	return fmt.Sprintf(
		"*Review the details:*\n\nName: %s\nEmail: %s\nPhone: %s\nOwner: %s\n\nAll correct?",
		botkit.EscapeMarkdownV2(d.Name),
		botkit.EscapeMarkdownV2(d.ContactEmail),
		botkit.EscapeMarkdownV2(d.ContactPhone),
		botkit.EscapeMarkdownV2(d.OwnerName),
	)
}

type draftView struct {
	Name         string
	ContactEmail string
	ContactPhone string
	OwnerName    string
}

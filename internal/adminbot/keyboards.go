package adminbot

import (
	"github.com/Deduh/foodbot-back/internal/botkit"
	"github.com/Deduh/foodbot-back/internal/store"
	tele "gopkg.in/telebot.v4"
)

// Callback keys routed through the registry.
const (
	cbMainMenu        = "main_menu"
	cbRestaurantsMenu = "restaurants_menu"
	cbUsersMenu       = "users_menu"
	cbShowProfile     = "show_profile"

	cbListRestaurants  = "list_restaurants"
	cbCreateRestaurant = "create_restaurant"
	cbViewRestaurant   = "view_restaurant"
	cbEditRestaurant   = "edit_restaurant"
	cbToggleStatus     = "toggle_status"
	cbEditName         = "edit_name"
	cbEditEmail        = "edit_email"
	cbEditPhone        = "edit_phone"
	cbManageBot        = "manage_bot"
	cbAssignToken      = "assign_token"
	cbUnlinkBot        = "unlink_bot"
	cbDeletePrompt     = "delete_restaurant_prompt"
	cbDeleteConfirm    = "delete_restaurant_confirm"

	cbListUsers    = "list_users"
	cbViewUser     = "view_user"
	cbChangeStatus = "change_status"
	cbChangeRole   = "change_role"
	cbSetRole      = "set_role"

	cbSelectOwner   = "select_owner"
	cbConfirmCreate = "confirm_create"
	cbCancelCreate  = "cancel_create"
)

func mainMenu() *tele.ReplyMarkup {
	return botkit.InlineButtons([]botkit.InlineBtn{
		{Text: "Restaurants", Unique: cbRestaurantsMenu},
		{Text: "Users", Unique: cbUsersMenu},
		{Text: "My profile", Unique: cbShowProfile},
	})
}

func restaurantsMenu() *tele.ReplyMarkup {
	return botkit.InlineButtons([]botkit.InlineBtn{
		{Text: "📋 List restaurants", Unique: cbListRestaurants},
		{Text: "➕ Create restaurant", Unique: cbCreateRestaurant},
		{Text: "« Back to main menu", Unique: cbMainMenu},
	})
}

func restaurantsList(restaurants []store.Restaurant) *tele.ReplyMarkup {
	buttons := make([]botkit.InlineBtn, 0, len(restaurants)+1)
	for _, r := range restaurants {
		buttons = append(buttons, botkit.InlineBtn{Text: r.Name, Unique: cbViewRestaurant, Data: r.ID})
	}
	buttons = append(buttons, botkit.InlineBtn{Text: "« Back", Unique: cbRestaurantsMenu})
	return botkit.InlineButtons(buttons)
}

func singleRestaurantMenu(restaurantID string) *tele.ReplyMarkup {
	return botkit.InlineButtons([]botkit.InlineBtn{
		{Text: "✏️ Edit", Unique: cbEditRestaurant, Data: restaurantID},
		{Text: "🤖 Manage bot", Unique: cbManageBot, Data: restaurantID},
		{Text: "❌ Delete", Unique: cbDeletePrompt, Data: restaurantID},
		{Text: "« Back to list", Unique: cbListRestaurants},
	})
}

func editRestaurantMenu(r *store.Restaurant) *tele.ReplyMarkup {
	statusText := "🟢 Activate"
	if r.IsActive {
		statusText = "🔴 Deactivate"
	}
	return botkit.InlineButtons([]botkit.InlineBtn{
		{Text: statusText, Unique: cbToggleStatus, Data: r.ID},
		{Text: "✏️ Name", Unique: cbEditName, Data: r.ID},
		{Text: "✉️ Email", Unique: cbEditEmail, Data: r.ID},
		{Text: "📞 Phone", Unique: cbEditPhone, Data: r.ID},
		{Text: "« Back to restaurant", Unique: cbViewRestaurant, Data: r.ID},
	})
}

func botManagementMenu(restaurantID string, hasBot bool) *tele.ReplyMarkup {
	buttons := []botkit.InlineBtn{
		{Text: "🔌 Assign/replace token", Unique: cbAssignToken, Data: restaurantID},
	}
	if hasBot {
		buttons = append(buttons, botkit.InlineBtn{Text: "🗑 Unlink bot", Unique: cbUnlinkBot, Data: restaurantID})
	}
	buttons = append(buttons, botkit.InlineBtn{Text: "« Back to restaurant", Unique: cbViewRestaurant, Data: restaurantID})
	return botkit.InlineButtons(buttons)
}

func deleteConfirmationMenu(restaurantID string) *tele.ReplyMarkup {
	return botkit.InlineButtons([]botkit.InlineBtn{
		{Text: "✅ Yes, delete", Unique: cbDeleteConfirm, Data: restaurantID},
		{Text: "« No, back to restaurant", Unique: cbViewRestaurant, Data: restaurantID},
	})
}

func usersMenu() *tele.ReplyMarkup {
	return botkit.InlineButtons([]botkit.InlineBtn{
		{Text: "📋 List users", Unique: cbListUsers},
		{Text: "« Back to main menu", Unique: cbMainMenu},
	})
}

func usersList(users []store.User) *tele.ReplyMarkup {
	buttons := make([]botkit.InlineBtn, 0, len(users)+1)
	for _, u := range users {
		buttons = append(buttons, botkit.InlineBtn{Text: u.DisplayName(), Unique: cbViewUser, Data: u.ID})
	}
	buttons = append(buttons, botkit.InlineBtn{Text: "« Back", Unique: cbUsersMenu})
	return botkit.InlineButtons(buttons)
}

func userViewMenu(u *store.User) *tele.ReplyMarkup {
	statusText := "🟢 Activate"
	if u.IsActive {
		statusText = "🔴 Deactivate"
	}
	return botkit.InlineButtons([]botkit.InlineBtn{
		{Text: statusText, Unique: cbChangeStatus, Data: u.ID},
		{Text: "🎭 Change role", Unique: cbChangeRole, Data: u.ID},
		{Text: "« Back to list", Unique: cbListUsers},
	})
}

func roleSelectionMenu(userID string) *tele.ReplyMarkup {
	roles := []store.UserRole{store.RoleAdmin, store.RoleRestaurantOwner, store.RoleCustomer}
	buttons := make([]botkit.InlineBtn, 0, len(roles)+1)
	for _, role := range roles {
		buttons = append(buttons, botkit.InlineBtn{
			Text:   string(role),
			Unique: cbSetRole,
			Data:   userID + ":" + string(role),
		})
	}
	buttons = append(buttons, botkit.InlineBtn{Text: "« Back", Unique: cbViewUser, Data: userID})
	return botkit.InlineButtons(buttons)
}

func backToMainMenu() *tele.ReplyMarkup {
	return botkit.InlineButtons([]botkit.InlineBtn{
		{Text: "« Back to main menu", Unique: cbMainMenu},
	})
}

func backToRestaurantsMenu() *tele.ReplyMarkup {
	return botkit.InlineButtons([]botkit.InlineBtn{
		{Text: "« Back", Unique: cbRestaurantsMenu},
	})
}

func backToRestaurantList() *tele.ReplyMarkup {
	return botkit.InlineButtons([]botkit.InlineBtn{
		{Text: "« Back to list", Unique: cbListRestaurants},
	})
}

func ownerPickList(owners []store.User) *tele.ReplyMarkup {
	buttons := make([]botkit.InlineBtn, 0, len(owners))
	for _, u := range owners {
		buttons = append(buttons, botkit.InlineBtn{Text: u.DisplayName(), Unique: cbSelectOwner, Data: u.ID})
	}
	return botkit.InlineButtonsNPerRow(buttons, 2)
}

func confirmCreateMenu() *tele.ReplyMarkup {
	return botkit.InlineButtons([]botkit.InlineBtn{
		{Text: "✅ Yes, create", Unique: cbConfirmCreate},
		{Text: "❌ No, cancel", Unique: cbCancelCreate},
	})
}

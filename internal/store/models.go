// Package store holds the sqlx repositories backing the platform.
package store

import (
	"database/sql"
	"time"
)

// UserRole enumerates platform roles.
type UserRole string

const (
	RoleAdmin           UserRole = "ADMIN"
	RoleRestaurantOwner UserRole = "RESTAURANT_OWNER"
	RoleCustomer        UserRole = "CUSTOMER"
)

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	StatusPending               OrderStatus = "PENDING"
	StatusConfirmed             OrderStatus = "CONFIRMED"
	StatusPreparing             OrderStatus = "PREPARING"
	StatusDelivering            OrderStatus = "DELIVERING"
	StatusCompleted             OrderStatus = "COMPLETED"
	StatusCancelledByUser       OrderStatus = "CANCELLED_BY_USER"
	StatusCancelledByRestaurant OrderStatus = "CANCELLED_BY_RESTAURANT"
)

// User is a platform account. Customers are registered silently on first order.
type User struct {
	ID             string         `db:"id"`
	TelegramUserID sql.NullString `db:"telegram_user_id"`
	TelegramChatID sql.NullInt64  `db:"telegram_chat_id"`
	Username       sql.NullString `db:"username"`
	Email          sql.NullString `db:"email"`
	Role           UserRole       `db:"role"`
	IsActive       bool           `db:"is_active"`
	RestaurantID   sql.NullString `db:"restaurant_id"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// DisplayName prefers the username and falls back to the Telegram user id.
func (u User) DisplayName() string {
	if u.Username.Valid && u.Username.String != "" {
		return u.Username.String
	}
	if u.TelegramUserID.Valid {
		return u.TelegramUserID.String
	}
	return u.ID
}

// Restaurant is one tenant of the platform.
type Restaurant struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	ContactEmail sql.NullString `db:"contact_email"`
	ContactPhone sql.NullString `db:"contact_phone"`
	IsActive     bool           `db:"is_active"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// MenuItem carries the current menu price; orders freeze it at creation time.
type MenuItem struct {
	ID           string    `db:"id"`
	RestaurantID string    `db:"restaurant_id"`
	Name         string    `db:"name"`
	Price        int64     `db:"price"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// BotInstance pairs a restaurant with an encrypted provider credential.
// EncryptedToken never leaves the registry package decrypted.
type BotInstance struct {
	ID             string    `db:"id"`
	RestaurantID   string    `db:"restaurant_id"`
	EncryptedToken string    `db:"bot_token"`
	BotUsername    string    `db:"bot_username"`
	IsActive       bool      `db:"is_active"`
	IsWebhookSet   bool      `db:"is_webhook_set"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Order is immutable after creation except for status and timestamps.
type Order struct {
	ID                     string         `db:"id"`
	RestaurantID           string         `db:"restaurant_id"`
	UserID                 sql.NullString `db:"user_id"`
	CustomerTelegramUserID sql.NullString `db:"customer_telegram_user_id"`
	CustomerName           sql.NullString `db:"customer_name"`
	CustomerPhone          sql.NullString `db:"customer_phone"`
	DeliveryAddress        sql.NullString `db:"delivery_address"`
	Status                 OrderStatus    `db:"status"`
	TotalPrice             int64          `db:"total_price"`
	CreatedAt              time.Time      `db:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
}

// OrderItem captures quantity and price frozen at order time.
type OrderItem struct {
	ID           string `db:"id"`
	OrderID      string `db:"order_id"`
	MenuItemID   string `db:"menu_item_id"`
	Quantity     int    `db:"quantity"`
	PriceAtOrder int64  `db:"price_at_order"`
	TotalPrice   int64  `db:"total_price"`
}

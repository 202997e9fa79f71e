package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Deduh/foodbot-back/internal/domain"
)

// UserStore persists platform accounts.
type UserStore struct {
	db *sqlx.DB
}

// Get returns one user by id.
func (s *UserStore) Get(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, mapRowErr(err, domain.NotFoundf("user %s", id))
	}
	return &u, nil
}

// GetByTelegramUserID looks an account up by its Telegram user id.
func (s *UserStore) GetByTelegramUserID(ctx context.Context, telegramUserID string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE telegram_user_id = $1`, telegramUserID)
	if err != nil {
		return nil, mapRowErr(err, domain.NotFoundf("user tg:%s", telegramUserID))
	}
	return &u, nil
}

// List returns all users ordered by creation time.
func (s *UserStore) List(ctx context.Context) ([]User, error) {
	var out []User
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM users ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// CreateCustomer registers a customer account for a Telegram user id.
func (s *UserStore) CreateCustomer(ctx context.Context, telegramUserID string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `
		INSERT INTO users (id, telegram_user_id, role, is_active)
		VALUES ($1, $2, $3, true)
		RETURNING *`,
		uuid.NewString(), telegramUserID, RoleCustomer,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflictf("user tg:%s", telegramUserID)
		}
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return &u, nil
}

// UpdateUserParams holds optional field updates; nil means keep.
type UpdateUserParams struct {
	Role           *UserRole
	IsActive       *bool
	TelegramChatID *int64
}

// Update applies the non-nil fields and returns the refreshed row.
func (s *UserStore) Update(ctx context.Context, id string, p UpdateUserParams) (*User, error) {
	var role *string
	if p.Role != nil {
		r := string(*p.Role)
		role = &r
	}
	var chatID sql.NullInt64
	if p.TelegramChatID != nil {
		chatID = sql.NullInt64{Int64: *p.TelegramChatID, Valid: true}
	}

	var u User
	err := s.db.GetContext(ctx, &u, `
		UPDATE users SET
			role             = COALESCE($2, role),
			is_active        = COALESCE($3, is_active),
			telegram_chat_id = COALESCE($4, telegram_chat_id),
			updated_at       = now()
		WHERE id = $1
		RETURNING *`,
		id, role, p.IsActive, chatID,
	)
	if err != nil {
		return nil, mapRowErr(err, domain.NotFoundf("user %s", id))
	}
	return &u, nil
}

// IsAdmin reports whether the Telegram user id belongs to a platform admin.
func (s *UserStore) IsAdmin(ctx context.Context, telegramUserID string) (bool, error) {
	var role UserRole
	err := s.db.GetContext(ctx, &role, `SELECT role FROM users WHERE telegram_user_id = $1`, telegramUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("admin lookup: %w", err)
	}
	return role == RoleAdmin, nil
}

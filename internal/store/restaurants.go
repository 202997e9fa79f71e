package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Deduh/foodbot-back/internal/domain"
)

// RestaurantStore persists restaurants and their owner assignments.
type RestaurantStore struct {
	db *sqlx.DB
}

// CreateRestaurantParams carries the fields collected by the admin wizard.
type CreateRestaurantParams struct {
	Name         string
	ContactEmail string
	ContactPhone string
	OwnerID      string
}

// Create inserts a restaurant and attaches the selected owner in one transaction.
func (s *RestaurantStore) Create(ctx context.Context, p CreateRestaurantParams) (*Restaurant, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var r Restaurant
	err = tx.GetContext(ctx, &r, `
		INSERT INTO restaurants (id, name, contact_email, contact_phone, is_active)
		VALUES ($1, $2, $3, $4, true)
		RETURNING *`,
		uuid.NewString(), p.Name, p.ContactEmail, p.ContactPhone,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflictf("restaurant %q", p.Name)
		}
		return nil, fmt.Errorf("insert restaurant: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE users SET restaurant_id = $1, role = $2, updated_at = now()
		WHERE id = $3`,
		r.ID, RoleRestaurantOwner, p.OwnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("attach owner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.NotFoundf("owner %s", p.OwnerID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &r, nil
}

// Get returns one restaurant by id.
func (s *RestaurantStore) Get(ctx context.Context, id string) (*Restaurant, error) {
	var r Restaurant
	err := s.db.GetContext(ctx, &r, `SELECT * FROM restaurants WHERE id = $1`, id)
	if err != nil {
		return nil, mapRowErr(err, domain.NotFoundf("restaurant %s", id))
	}
	return &r, nil
}

// List returns all restaurants ordered by name.
func (s *RestaurantStore) List(ctx context.Context) ([]Restaurant, error) {
	var out []Restaurant
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM restaurants ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	return out, nil
}

// UpdateRestaurantParams holds optional field updates; nil means keep.
type UpdateRestaurantParams struct {
	Name         *string
	ContactEmail *string
	ContactPhone *string
	IsActive     *bool
}

// Update applies the non-nil fields and returns the refreshed row.
func (s *RestaurantStore) Update(ctx context.Context, id string, p UpdateRestaurantParams) (*Restaurant, error) {
	var r Restaurant
	err := s.db.GetContext(ctx, &r, `
		UPDATE restaurants SET
			name          = COALESCE($2, name),
			contact_email = COALESCE($3, contact_email),
			contact_phone = COALESCE($4, contact_phone),
			is_active     = COALESCE($5, is_active),
			updated_at    = now()
		WHERE id = $1
		RETURNING *`,
		id, p.Name, p.ContactEmail, p.ContactPhone, p.IsActive,
	)
	if err != nil {
		return nil, mapRowErr(err, domain.NotFoundf("restaurant %s", id))
	}
	return &r, nil
}

// Delete removes a restaurant. Owner links and menu rows go with it via FK cascade.
func (s *RestaurantStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM restaurants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete restaurant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("restaurant %s", id)
	}
	return nil
}

// Owners returns the owner accounts attached to a restaurant.
func (s *RestaurantStore) Owners(ctx context.Context, restaurantID string) ([]User, error) {
	var out []User
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM users
		WHERE restaurant_id = $1 AND role = $2
		ORDER BY created_at`,
		restaurantID, RoleRestaurantOwner,
	)
	if err != nil {
		return nil, fmt.Errorf("restaurant owners: %w", err)
	}
	return out, nil
}

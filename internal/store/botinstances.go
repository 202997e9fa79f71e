package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Deduh/foodbot-back/internal/domain"
)

// BotInstanceStore persists bot instance rows. Tokens are stored encrypted;
// this layer never sees a plaintext credential.
type BotInstanceStore struct {
	db *sqlx.DB
}

// CreateBotInstanceParams carries a freshly provisioned instance.
type CreateBotInstanceParams struct {
	RestaurantID   string
	EncryptedToken string
	BotUsername    string
}

// Create inserts an inactive, webhook-less instance. Uniqueness of both the
// restaurant pairing and the credential is enforced by the schema.
func (s *BotInstanceStore) Create(ctx context.Context, p CreateBotInstanceParams) (*BotInstance, error) {
	var b BotInstance
	err := s.db.GetContext(ctx, &b, `
		INSERT INTO bot_instances (id, restaurant_id, bot_token, bot_username, is_active, is_webhook_set)
		VALUES ($1, $2, $3, $4, false, false)
		RETURNING *`,
		uuid.NewString(), p.RestaurantID, p.EncryptedToken, p.BotUsername,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflictf("bot instance for restaurant %s", p.RestaurantID)
		}
		return nil, fmt.Errorf("insert bot instance: %w", err)
	}
	return &b, nil
}

// Get returns one instance by id.
func (s *BotInstanceStore) Get(ctx context.Context, id string) (*BotInstance, error) {
	var b BotInstance
	err := s.db.GetContext(ctx, &b, `SELECT * FROM bot_instances WHERE id = $1`, id)
	if err != nil {
		return nil, mapRowErr(err, domain.NotFoundf("bot instance %s", id))
	}
	return &b, nil
}

// GetByRestaurant returns the instance paired with a restaurant.
func (s *BotInstanceStore) GetByRestaurant(ctx context.Context, restaurantID string) (*BotInstance, error) {
	var b BotInstance
	err := s.db.GetContext(ctx, &b, `SELECT * FROM bot_instances WHERE restaurant_id = $1`, restaurantID)
	if err != nil {
		return nil, mapRowErr(err, domain.NotFoundf("bot instance for restaurant %s", restaurantID))
	}
	return &b, nil
}

// ListActive returns every instance flagged active, for supervisor startup.
func (s *BotInstanceStore) ListActive(ctx context.Context) ([]BotInstance, error) {
	var out []BotInstance
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM bot_instances WHERE is_active ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("list active bot instances: %w", err)
	}
	return out, nil
}

// SetFlags updates the activation pair after a webhook round trip.
func (s *BotInstanceStore) SetFlags(ctx context.Context, id string, active, webhookSet bool) (*BotInstance, error) {
	var b BotInstance
	err := s.db.GetContext(ctx, &b, `
		UPDATE bot_instances SET is_active = $2, is_webhook_set = $3, updated_at = now()
		WHERE id = $1
		RETURNING *`,
		id, active, webhookSet,
	)
	if err != nil {
		return nil, mapRowErr(err, domain.NotFoundf("bot instance %s", id))
	}
	return &b, nil
}

// Delete removes an instance row.
func (s *BotInstanceStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bot_instances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bot instance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("bot instance %s", id)
	}
	return nil
}

package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Deduh/foodbot-back/internal/domain"
)

// MenuStore reads current menu prices; order creation freezes them per line.
type MenuStore struct {
	db *sqlx.DB
}

// Get returns one menu item by id.
func (s *MenuStore) Get(ctx context.Context, id string) (*MenuItem, error) {
	var m MenuItem
	err := s.db.GetContext(ctx, &m, `SELECT * FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return nil, mapRowErr(err, domain.NotFoundf("menu item %s", id))
	}
	return &m, nil
}

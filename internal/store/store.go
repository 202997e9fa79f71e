package store

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// Store bundles all repositories over one connection pool.
type Store struct {
	Restaurants  *RestaurantStore
	Users        *UserStore
	Orders       *OrderStore
	BotInstances *BotInstanceStore
	Menu         *MenuStore
}

// New wires the repositories.
func New(db *sqlx.DB) *Store {
	return &Store{
		Restaurants:  &RestaurantStore{db: db},
		Users:        &UserStore{db: db},
		Orders:       &OrderStore{db: db},
		BotInstances: &BotInstanceStore{db: db},
		Menu:         &MenuStore{db: db},
	}
}

// mapRowErr converts driver-level lookup failures to the domain taxonomy.
func mapRowErr(err error, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}

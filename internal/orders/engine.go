// Package orders owns order creation and the status lifecycle.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/metrics"
	"github.com/Deduh/foodbot-back/internal/store"
)

// Actor identifies who requests a transition.
type Actor struct {
	UserID string
	Role   store.UserRole
	// RestaurantID is the restaurant the actor owns, for owner roles.
	RestaurantID string
}

// operatorTransitions is the allowed table for platform admins and restaurant
// owners. CANCELLED_BY_USER is deliberately absent: only the originating
// customer's flow may set it. Terminal states have no entries.
var operatorTransitions = map[store.OrderStatus][]store.OrderStatus{
	store.StatusPending:    {store.StatusConfirmed, store.StatusCancelledByRestaurant},
	store.StatusConfirmed:  {store.StatusPreparing, store.StatusCancelledByRestaurant},
	store.StatusPreparing:  {store.StatusDelivering, store.StatusCancelledByRestaurant},
	store.StatusDelivering: {store.StatusCompleted},
}

// customerTransitions is the table for the originating customer.
var customerTransitions = map[store.OrderStatus][]store.OrderStatus{
	store.StatusPending: {store.StatusCancelledByUser},
}

// OrderRepo is the slice of the order store the engine needs.
type OrderRepo interface {
	Get(ctx context.Context, id string) (*store.Order, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to store.OrderStatus) (bool, error)
}

// Engine validates and applies status transitions.
type Engine struct {
	repo OrderRepo
	m    *metrics.Metrics
}

// NewEngine builds the lifecycle engine. Metrics may be nil.
func NewEngine(repo OrderRepo, m *metrics.Metrics) *Engine {
	return &Engine{repo: repo, m: m}
}

func (e *Engine) countTransition(next store.OrderStatus, outcome string) {
	if e.m != nil {
		e.m.OrderTransitions.WithLabelValues(string(next), outcome).Inc()
	}
}

// Transition applies one status change on behalf of an actor. The update is a
// compare-and-set against the persisted row; when a concurrent transition wins
// the race the request is re-validated against the fresh status and rejected
// if it is no longer legal.
func (e *Engine) Transition(ctx context.Context, orderID string, next store.OrderStatus, actor Actor) (*store.Order, error) {
	order, err := e.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	for {
		if err := validateTransition(order, next, actor); err != nil {
			e.countTransition(next, "rejected")
			return nil, err
		}

		applied, err := e.repo.CompareAndSetStatus(ctx, orderID, order.Status, next)
		if err != nil {
			return nil, err
		}
		if applied {
			logger.SVCOrders.Info("order status updated",
				slog.String("event", "order.transition"),
				slog.String("order_id", orderID),
				slog.String("from", string(order.Status)),
				slog.String("to", string(next)),
				slog.String("actor_id", actor.UserID),
				slog.String("actor_role", string(actor.Role)),
			)
			order.Status = next
			e.countTransition(next, "applied")
			return order, nil
		}

		// Lost the race: reload and re-validate against the post-transition status.
		order, err = e.repo.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
	}
}

func validateTransition(order *store.Order, next store.OrderStatus, actor Actor) error {
	table, err := tableFor(order, actor)
	if err != nil {
		return err
	}

	if order.Status == next {
		return fmt.Errorf("order %s is already %s: %w", order.ID, next, domain.ErrInvalidTransition)
	}

	allowed := table[order.Status]
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("transition %s -> %s not allowed (allowed: %s): %w",
		order.Status, next, formatAllowed(allowed), domain.ErrInvalidTransition)
}

func tableFor(order *store.Order, actor Actor) (map[store.OrderStatus][]store.OrderStatus, error) {
	switch actor.Role {
	case store.RoleAdmin:
		return operatorTransitions, nil
	case store.RoleRestaurantOwner:
		if actor.RestaurantID != order.RestaurantID {
			return nil, fmt.Errorf("actor %s does not own restaurant %s: %w",
				actor.UserID, order.RestaurantID, domain.ErrForbidden)
		}
		return operatorTransitions, nil
	case store.RoleCustomer:
		if !order.UserID.Valid || order.UserID.String != actor.UserID {
			return nil, fmt.Errorf("actor %s did not place order %s: %w",
				actor.UserID, order.ID, domain.ErrForbidden)
		}
		return customerTransitions, nil
	default:
		return nil, fmt.Errorf("role %q may not manage orders: %w", actor.Role, domain.ErrForbidden)
	}
}

func formatAllowed(allowed []store.OrderStatus) string {
	if len(allowed) == 0 {
		return "none"
	}
	parts := make([]string, len(allowed))
	for i, s := range allowed {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

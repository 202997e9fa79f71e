package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Deduh/foodbot-back/internal/domain"
	"github.com/Deduh/foodbot-back/internal/events"
	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/store"
)

// OrderWriter extends OrderRepo with creation.
type OrderWriter interface {
	OrderRepo
	Create(ctx context.Context, p store.CreateOrderParams) (*store.Order, error)
}

// RestaurantRepo is the restaurant lookup the service needs.
type RestaurantRepo interface {
	Get(ctx context.Context, id string) (*store.Restaurant, error)
}

// MenuRepo resolves current menu prices at order time.
type MenuRepo interface {
	Get(ctx context.Context, id string) (*store.MenuItem, error)
}

// UserRepo supports silent customer registration.
type UserRepo interface {
	GetByTelegramUserID(ctx context.Context, telegramUserID string) (*store.User, error)
	CreateCustomer(ctx context.Context, telegramUserID string) (*store.User, error)
}

// LineInput is one requested order line.
type LineInput struct {
	MenuItemID string
	Quantity   int
}

// CreateInput is the external order-creation request.
type CreateInput struct {
	RestaurantID           string
	CustomerTelegramUserID string
	CustomerName           string
	CustomerPhone          string
	DeliveryAddress        string
	Items                  []LineInput
}

// Service creates orders and emits the order.created signal.
type Service struct {
	*Engine
	orders      OrderWriter
	restaurants RestaurantRepo
	menu        MenuRepo
	users       UserRepo
	bus         *events.Bus
}

// NewService wires the order service.
func NewService(orders OrderWriter, restaurants RestaurantRepo, menu MenuRepo, users UserRepo, bus *events.Bus) *Service {
	return &Service{
		Engine:      NewEngine(orders, nil),
		orders:      orders,
		restaurants: restaurants,
		menu:        menu,
		users:       users,
		bus:         bus,
	}
}

// Create validates the request, freezes each line's price from the current
// menu, persists the order, and publishes order.created. Later menu price
// changes never touch the stored totals.
func (s *Service) Create(ctx context.Context, in CreateInput) (*store.Order, error) {
	restaurant, err := s.restaurants.Get(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}
	if !restaurant.IsActive {
		return nil, fmt.Errorf("restaurant %q is not accepting orders: %w", restaurant.Name, domain.ErrInvalidState)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item: %w", domain.ErrInvalidState)
	}

	var customer *store.User
	if in.CustomerTelegramUserID != "" {
		customer = s.resolveCustomer(ctx, in.CustomerTelegramUserID)
	}

	var total int64
	items := make([]store.OrderItem, 0, len(in.Items))
	for _, line := range in.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("item %s has non-positive quantity: %w", line.MenuItemID, domain.ErrInvalidState)
		}
		menuItem, err := s.menu.Get(ctx, line.MenuItemID)
		if err != nil {
			return nil, err
		}
		if !menuItem.IsActive {
			return nil, fmt.Errorf("menu item %q is unavailable: %w", menuItem.Name, domain.ErrInvalidState)
		}
		if menuItem.RestaurantID != in.RestaurantID {
			return nil, fmt.Errorf("menu item %q does not belong to restaurant %s: %w",
				menuItem.Name, in.RestaurantID, domain.ErrInvalidState)
		}

		lineTotal := int64(line.Quantity) * menuItem.Price
		items = append(items, store.OrderItem{
			MenuItemID:   line.MenuItemID,
			Quantity:     line.Quantity,
			PriceAtOrder: menuItem.Price,
			TotalPrice:   lineTotal,
		})
		total += lineTotal
	}

	params := store.CreateOrderParams{
		RestaurantID: in.RestaurantID,
		TotalPrice:   total,
		Items:        items,
	}
	if customer != nil {
		params.UserID = &customer.ID
	}
	params.CustomerTelegramUserID = optional(in.CustomerTelegramUserID)
	params.CustomerName = optional(in.CustomerName)
	params.CustomerPhone = optional(in.CustomerPhone)
	params.DeliveryAddress = optional(in.DeliveryAddress)

	order, err := s.orders.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	logger.SVCOrders.Info("order created",
		slog.String("event", "order.created"),
		slog.String("order_id", order.ID),
		slog.String("restaurant_id", order.RestaurantID),
		slog.Int64("total_price", order.TotalPrice),
	)

	if s.bus != nil {
		s.bus.PublishOrderCreated(events.OrderCreated{Order: *order})
	}
	return order, nil
}

// resolveCustomer finds or silently registers the customer account. Failures
// are logged and the order proceeds without a linked user.
func (s *Service) resolveCustomer(ctx context.Context, telegramUserID string) *store.User {
	customer, err := s.users.GetByTelegramUserID(ctx, telegramUserID)
	if err == nil {
		return customer
	}
	if !errors.Is(err, domain.ErrNotFound) {
		logger.SVCOrders.Warn("customer lookup failed",
			slog.String("event", "order.customer"),
			slog.String("tg_user_id", telegramUserID),
			slog.String("err", err.Error()),
		)
		return nil
	}

	customer, err = s.users.CreateCustomer(ctx, telegramUserID)
	if err != nil {
		logger.SVCOrders.Warn("silent customer registration failed",
			slog.String("event", "order.customer"),
			slog.String("tg_user_id", telegramUserID),
			slog.String("err", err.Error()),
		)
		return nil
	}
	logger.SVCOrders.Info("customer registered",
		slog.String("event", "order.customer"),
		slog.String("user_id", customer.ID),
	)
	return customer
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

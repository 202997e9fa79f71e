// Package events is a minimal in-process publish/subscribe bus. Delivery is
// fire-and-forget within the current process; there is no persistence and no
// guarantee beyond it.
package events

import (
	"log/slog"
	"sync"

	"github.com/Deduh/foodbot-back/internal/logger"
	"github.com/Deduh/foodbot-back/internal/store"
)

// OrderCreated is emitted after an order row and its items are persisted.
type OrderCreated struct {
	Order store.Order
}

// Bus fans OrderCreated events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs []chan OrderCreated
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// SubscribeOrderCreated registers a buffered subscription channel.
func (b *Bus) SubscribeOrderCreated() <-chan OrderCreated {
	ch := make(chan OrderCreated, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// PublishOrderCreated delivers the event to every subscriber without blocking
// the publisher. A subscriber that has fallen behind loses the event.
func (b *Bus) PublishOrderCreated(ev OrderCreated) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.SVCNotify.Warn("event dropped, subscriber busy",
				slog.String("event", "bus.drop"),
				slog.String("order_id", ev.Order.ID),
			)
		}
	}
}

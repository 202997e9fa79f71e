package events

import (
	"testing"
	"time"

	"github.com/Deduh/foodbot-back/internal/store"
)

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	b := NewBus()
	done := make(chan struct{})
	go func() {
		b.PublishOrderCreated(OrderCreated{Order: store.Order{ID: "o1"}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}

func TestSubscriberReceivesEvent(t *testing.T) {
	b := NewBus()
	ch := b.SubscribeOrderCreated()
	b.PublishOrderCreated(OrderCreated{Order: store.Order{ID: "o2"}})
	select {
	case ev := <-ch:
		if ev.Order.ID != "o2" {
			t.Errorf("order id = %s, want o2", ev.Order.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := NewBus()
	_ = b.SubscribeOrderCreated() // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.PublishOrderCreated(OrderCreated{Order: store.Order{ID: "x"}})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
}

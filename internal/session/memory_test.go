package session

import (
	"sync"
	"testing"
	"time"
)

func TestPutOverwritesPreviousVariant(t *testing.T) {
	m := NewMemoryStore(0)
	defer m.Close()

	m.Put(1, AdHocPrompt{Action: PromptEditName, RestaurantID: "r1"})
	m.Put(1, Wizard{Step: StepEmail, Draft: RestaurantDraft{Name: "Pizza Hub"}})

	s, ok := m.Get(1)
	if !ok {
		t.Fatal("expected a session")
	}
	w, ok := s.(Wizard)
	if !ok {
		t.Fatalf("expected Wizard, got %T", s)
	}
	if w.Draft.Name != "Pizza Hub" {
		t.Errorf("draft name = %q", w.Draft.Name)
	}
}

func TestAdministratorsAreIsolated(t *testing.T) {
	m := NewMemoryStore(0)
	defer m.Close()

	m.Put(1, Wizard{Draft: RestaurantDraft{Name: "first"}})
	m.Put(2, Wizard{Draft: RestaurantDraft{Name: "second"}})

	a, _ := m.Get(1)
	b, _ := m.Get(2)
	if a.(Wizard).Draft.Name == b.(Wizard).Draft.Name {
		t.Error("two administrators observed each other's drafts")
	}

	m.Clear(1)
	if _, ok := m.Get(1); ok {
		t.Error("cleared session still present")
	}
	if _, ok := m.Get(2); !ok {
		t.Error("clearing one administrator removed another's session")
	}
}

func TestTTLEvictsAbandonedSessions(t *testing.T) {
	m := NewMemoryStore(20 * time.Millisecond)
	defer m.Close()

	m.Put(7, AdHocPrompt{Action: PromptAssignToken})
	if _, ok := m.Get(7); !ok {
		t.Fatal("fresh session should be readable")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := m.Get(7); ok {
		t.Error("expired session should not be returned")
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := NewMemoryStore(time.Minute)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Put(id, AdHocPrompt{Action: PromptEditName})
				m.Get(id)
				m.Clear(id)
			}
		}(int64(i % 4))
	}
	wg.Wait()
}

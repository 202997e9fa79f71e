package session

import (
	"sync"
	"time"
)

// Store is the session store injected into the admin dispatcher.
type Store interface {
	// Get returns the session for an administrator, if any.
	Get(adminID int64) (Session, bool)
	// Put replaces whatever session the administrator had. Starting a new
	// action before the previous one completes overwrites it; there is no
	// queueing.
	Put(adminID int64, s Session)
	// Clear drops the administrator's session.
	Clear(adminID int64)
}

type entry struct {
	sess    Session
	touched time.Time
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]entry
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs the in-memory Store. A positive ttl starts a
// janitor that evicts sessions untouched for longer than ttl, so abandoned
// conversations cannot grow memory without bound.
func NewMemoryStore(ttl time.Duration) *memoryStore {
	m := &memoryStore{
		sessions: make(map[int64]entry),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go m.janitor()
	}
	return m
}

func (m *memoryStore) Get(adminID int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[adminID]
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && time.Since(e.touched) > m.ttl {
		return nil, false
	}
	return e.sess, true
}

func (m *memoryStore) Put(adminID int64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[adminID] = entry{sess: s, touched: time.Now()}
}

func (m *memoryStore) Clear(adminID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, adminID)
}

// Close stops the janitor goroutine.
func (m *memoryStore) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *memoryStore) janitor() {
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for id, e := range m.sessions {
				if now.Sub(e.touched) > m.ttl {
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
		}
	}
}

package navigation

import (
	"sync"
	"time"

	"github.com/attacklens/attacklens/internal/logger"
)

// Manager tracks live sessions and expires idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	loader   Loader
	log      *logger.Logger
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewManager(loader Loader, log *logger.Logger, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	m := &Manager{
		sessions: make(map[string]*Session),
		loader:   loader,
		log:      log.WithComponent("session-manager"),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go m.cleanup()
	return m
}

func (m *Manager) Create() *Session {
	s := NewSession(m.loader, m.log)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count reports the number of live sessions, for the health endpoint.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) cleanup() {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.ttl)
			m.mu.Lock()
			for id, s := range m.sessions {
				if s.LastAccess().Before(cutoff) {
					delete(m.sessions, id)
					m.log.Debugw("Expired idle session", "session_id", id)
				}
			}
			m.mu.Unlock()
		}
	}
}

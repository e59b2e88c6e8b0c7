// Package session manages per-conversation patient state for the host
// application: the accumulating response mapping and the asked-question
// ledger, with automatic timeout cleanup. The engine itself never owns
// this state; it is passed into every evaluation call.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"health-eligibility-engine/internal/models"
	"health-eligibility-engine/internal/services/engine"
	"health-eligibility-engine/internal/utils"
)

// Session holds the state of one patient conversation. Responses and
// Asked are mutable shared state: access them only through the manager's
// Get/Update/With methods, which serialize on the per-session lock.
type Session struct {
	ID           string
	Responses    models.Responses
	Asked        engine.AskedLedger
	CreatedAt    time.Time
	LastActivity time.Time

	mu sync.Mutex
}

// View is a copied, immutable snapshot of a session's state. Handlers
// that only read session state work from a View so a concurrent update
// can never race their iteration.
type View struct {
	ID           string           `json:"session_id"`
	Responses    models.Responses `json:"responses"`
	CreatedAt    time.Time        `json:"created_at"`
	LastActivity time.Time        `json:"last_activity"`
}

// Stats are monitoring counters for the session manager.
type Stats struct {
	TotalCreated int `json:"total_created"`
	TotalExpired int `json:"total_expired"`
	TotalEnded   int `json:"total_ended"`
	ActiveCount  int `json:"active_count"`
}

// Manager tracks active sessions and expires idle ones in the background.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timeout  time.Duration
	interval time.Duration
	stats    Stats
	cancel   context.CancelFunc
}

// NewManager creates a session manager with the given idle timeout and
// cleanup interval.
func NewManager(timeout, cleanupInterval time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	return &Manager{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		interval: cleanupInterval,
	}
}

// Start launches the background cleanup loop. Stop cancels it.
func (m *Manager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				expired := m.ExpireIdle()
				if expired > 0 {
					utils.GetLogger().Info("Expired idle sessions", zap.Int("count", expired))
				}
			}
		}
	}()
}

// Stop cancels the background cleanup loop.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Create starts a new empty session and returns its snapshot.
func (m *Manager) Create() View {
	now := time.Now()
	s := &Session{
		ID:           uuid.NewString(),
		Responses:    make(models.Responses),
		Asked:        engine.NewAskedLedger(),
		CreatedAt:    now,
		LastActivity: now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.stats.TotalCreated++
	m.stats.ActiveCount = len(m.sessions)
	m.mu.Unlock()

	return View{ID: s.ID, Responses: make(models.Responses), CreatedAt: now, LastActivity: now}
}

// get returns an active, unexpired session. Expired sessions are removed
// on access; live ones get their idle clock reset.
func (m *Manager) get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	idle := time.Since(s.LastActivity)
	if idle < m.timeout {
		s.LastActivity = time.Now()
	}
	s.mu.Unlock()

	if idle >= m.timeout {
		delete(m.sessions, id)
		m.stats.TotalExpired++
		m.stats.ActiveCount = len(m.sessions)
		return nil, false
	}
	return s, true
}

// Get returns a copied snapshot of an active, unexpired session.
func (m *Manager) Get(id string) (View, bool) {
	s, ok := m.get(id)
	if !ok {
		return View{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:           s.ID,
		Responses:    s.Responses.Clone(),
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}, true
}

// Update merges new patient responses into the session state and returns
// the resulting snapshot. Responses accumulate field by field; a turn
// never wipes earlier answers.
func (m *Manager) Update(id string, updates models.Responses) (View, bool) {
	s, ok := m.get(id)
	if !ok {
		return View{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses.Merge(updates)
	return View{
		ID:           s.ID,
		Responses:    s.Responses.Clone(),
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}, true
}

// With runs fn against the live session while holding its lock, so fn may
// read and mutate Responses and Asked without racing a concurrent update.
// fn must not call back into the manager for the same session.
func (m *Manager) With(id string, fn func(s *Session)) bool {
	s, ok := m.get(id)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
	return true
}

// End removes a session explicitly.
func (m *Manager) End(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	m.stats.TotalEnded++
	m.stats.ActiveCount = len(m.sessions)
	return true
}

// ExpireIdle removes every session idle past the timeout and returns how
// many were removed.
func (m *Manager) ExpireIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.timeout)
	expired := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.LastActivity.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			expired++
		}
	}
	m.stats.TotalExpired += expired
	m.stats.ActiveCount = len(m.sessions)
	return expired
}

// Stats returns a copy of the monitoring counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

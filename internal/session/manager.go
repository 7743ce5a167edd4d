package session

import (
	"fmt"
	"sync"

	"github.com/contextcore/recall/internal/compress"
	"github.com/contextcore/recall/internal/observe"
	"github.com/contextcore/recall/internal/protect"
)

// Manager is a concurrency-safe registry of live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	classifier *protect.Classifier
	compressor *compress.Compressor
	obs        *observe.Observer
}

// NewManager creates a registry whose sessions share one classifier and
// compressor configuration.
func NewManager(classifier *protect.Classifier, compressor *compress.Compressor, obs *observe.Observer) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		classifier: classifier,
		compressor: compressor,
		obs:        obs,
	}
}

// Open creates and registers a new session. Opening an ID that is already
// live is an error; callers end a session before reusing its ID.
func (m *Manager) Open(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("session %q already open", id)
	}

	s := New(id, m.classifier, m.compressor, m.obs)
	m.sessions[id] = s
	return s, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close removes a session from the registry and returns it so the caller
// can run end-of-session work (consolidation) on the final event log.
func (m *Manager) Close(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q not found", id)
	}
	delete(m.sessions, id)
	return s, nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

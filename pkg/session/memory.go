package session

import (
	"sync"

	"github.com/NicolasHaas/cliniclink/pkg/model"
)

// MemoryStore keeps the session in process memory. It is used by tests and
// by short-lived commands that must not touch the device database.
type MemoryStore struct {
	mu      sync.RWMutex
	current model.Session
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryWith creates a MemoryStore holding s.
func NewMemoryWith(s model.Session) *MemoryStore {
	return &MemoryStore{current: s}
}

func (m *MemoryStore) Get() model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *MemoryStore) Save(s model.Session) error {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.current = model.Session{}
	m.mu.Unlock()
	return nil
}

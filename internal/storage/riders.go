package storage

import (
	"context"
	"sync"

	"github.com/example/ride-dispatch/internal/models"
)

// RiderDirectory resolves a rider identity to the profile attached to
// operator notifications. Profiles are owned by the external account
// store; an implementation backed by it only needs this one lookup.
type RiderDirectory interface {
	GetRider(ctx context.Context, id string) (models.Rider, error)
}

// MemoryRiders is a concurrent map directory. Unknown identities
// resolve to a bare profile rather than an error: the push is more
// useful with just an id than not sent at all.
type MemoryRiders struct {
	mu     sync.RWMutex
	riders map[string]models.Rider
}

func NewMemoryRiders() *MemoryRiders {
	return &MemoryRiders{riders: make(map[string]models.Rider)}
}

func (m *MemoryRiders) Put(r models.Rider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[r.ID] = r
}

func (m *MemoryRiders) GetRider(_ context.Context, id string) (models.Rider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.riders[id]; ok {
		return r, nil
	}
	return models.Rider{ID: id}, nil
}

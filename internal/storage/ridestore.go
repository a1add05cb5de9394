package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// ErrNotFound covers both a missing ride and a conditional update
// whose status precondition no longer holds; callers cannot tell the
// two apart and must not need to.
var ErrNotFound = errors.New("storage: ride not found")

// RideStore is the persistence contract for rides. AcceptRide and
// TransitionRide are conditional writes: they mutate only if the
// current status matches the precondition, atomically, so concurrent
// acceptors race at the store rather than in process memory.
type RideStore interface {
	CreateRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)
	// AcceptRide assigns the operator and moves pending -> accepted in
	// one conditional write. ErrNotFound when the ride is absent or no
	// longer pending.
	AcceptRide(ctx context.Context, id, operatorID string) (*models.Ride, error)
	// TransitionRide moves from -> to only while the ride is still in
	// from. ErrNotFound when the precondition fails.
	TransitionRide(ctx context.Context, id string, from, to models.RideStatus) (*models.Ride, error)
}

// MemoryRideStore keeps rides in a mutex-guarded map. Values are
// copied in and out so callers never share mutable state with the
// store.
type MemoryRideStore struct {
	mu    sync.Mutex
	rides map[string]models.Ride
}

func NewMemoryRideStore() *MemoryRideStore {
	return &MemoryRideStore{rides: make(map[string]models.Ride)}
}

func (m *MemoryRideStore) CreateRide(_ context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[r.ID]; ok {
		return fmt.Errorf("storage: ride %s already exists", r.ID)
	}
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryRideStore) GetRide(_ context.Context, id string) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryRideStore) AcceptRide(_ context.Context, id, operatorID string) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok || r.Status != models.StatusPending {
		return nil, ErrNotFound
	}
	r.OperatorID = operatorID
	r.Status = models.StatusAccepted
	r.UpdatedAt = time.Now()
	m.rides[id] = r
	return &r, nil
}

func (m *MemoryRideStore) TransitionRide(_ context.Context, id string, from, to models.RideStatus) (*models.Ride, error) {
	if !models.CanTransition(from, to) {
		return nil, fmt.Errorf("storage: illegal transition %s -> %s", from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok || r.Status != from {
		return nil, ErrNotFound
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	m.rides[id] = r
	return &r, nil
}

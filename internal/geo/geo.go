package geo

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// Index is the proximity lookup required by the dispatch orchestrator
// and the location ingest path. FindNear restricts by great-circle
// distance only; it deliberately does not filter on availability,
// because a reported position can outlive a disconnect. Callers that
// need "currently available" filter the result themselves.
type Index interface {
	FindNear(ctx context.Context, center models.Coord, radiusKm float64) ([]models.Operator, error)
	Upsert(ctx context.Context, op models.Operator) error
}

// MemoryIndex is a mutex-guarded scan over reported positions. Fine
// for tests and single-process runs; production uses RedisIndex.
type MemoryIndex struct {
	mu        sync.RWMutex
	operators map[string]models.Operator
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{operators: make(map[string]models.Operator)}
}

func (g *MemoryIndex) Upsert(_ context.Context, op models.Operator) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	op.Updated = time.Now()
	g.operators[op.ID] = op
	return nil
}

func (g *MemoryIndex) FindNear(_ context.Context, center models.Coord, radiusKm float64) ([]models.Operator, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.Operator, 0)
	for _, op := range g.operators {
		d := Haversine(center.Lat, center.Lng, op.Position.Lat, op.Position.Lng)
		if d <= radiusKm*1000 {
			out = append(out, op)
		}
	}
	return out, nil
}

// Haversine distance in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

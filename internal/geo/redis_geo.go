package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/models"
)

// RedisIndex implements Index on Redis GEO commands so every process
// (API server, location consumer) shares one view of operator
// positions. Position lives in a geo set; availability and vehicle
// class live in a per-operator meta hash.
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(addr, password, key string) *RedisIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, key: key}
}

// NewRedisIndexWithClient wires an existing client, used by the
// consumer which also pings Redis for readiness.
func NewRedisIndexWithClient(c *redis.Client, key string) *RedisIndex {
	return &RedisIndex{client: c, key: key}
}

func (r *RedisIndex) Upsert(ctx context.Context, op models.Operator) error {
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Longitude: op.Position.Lng,
		Latitude:  op.Position.Lat,
		Name:      op.ID,
	}).Err(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(op.ID), map[string]interface{}{
		"available": strconv.FormatBool(op.Available),
		"class":     string(op.Class),
		"updated":   time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisIndex) FindNear(ctx context.Context, center models.Coord, radiusKm float64) ([]models.Operator, error) {
	res, err := r.client.GeoRadius(ctx, r.key, center.Lng, center.Lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Operator, 0, len(res))
	for _, loc := range res {
		op := models.Operator{
			ID:       loc.Name,
			Position: models.Coord{Lat: loc.Latitude, Lng: loc.Longitude},
		}
		if m, err := r.client.HGetAll(ctx, metaKey(loc.Name)).Result(); err == nil {
			op.Available = m["available"] == "true"
			op.Class = models.VehicleClass(m["class"])
			if ts, err := time.Parse(time.RFC3339, m["updated"]); err == nil {
				op.Updated = ts
			}
		}
		out = append(out, op)
	}
	return out, nil
}

func metaKey(id string) string { return "operator:meta:" + id }

package fare

import (
	"errors"
	"math"

	"github.com/example/ride-dispatch/internal/models"
)

// ErrInvalidQuoteInput signals missing or negative distance/duration.
var ErrInvalidQuoteInput = errors.New("fare: distance and duration must be non-negative")

// Rate holds the pricing parameters for one vehicle class, in whole
// currency units per km / per minute plus a flat base fee.
type Rate struct {
	Base      float64
	PerKm     float64
	PerMinute float64
}

// Engine quotes a fare per vehicle class from distance and duration.
// It is pure: same inputs always produce the same quote, which keeps
// quotes reproducible across retries.
type Engine struct {
	rates map[models.VehicleClass]Rate
}

// DefaultRates returns the standard rate table.
func DefaultRates() map[models.VehicleClass]Rate {
	return map[models.VehicleClass]Rate{
		models.ClassAuto: {Base: 1.5, PerKm: 0.75, PerMinute: 0.25},
		models.ClassCar:  {Base: 2.5, PerKm: 1.25, PerMinute: 0.5},
		models.ClassMoto: {Base: 1.0, PerKm: 0.5, PerMinute: 0.2},
	}
}

func NewEngine(rates map[models.VehicleClass]Rate) *Engine {
	if len(rates) == 0 {
		rates = DefaultRates()
	}
	return &Engine{rates: rates}
}

// Quote prices every configured class for the given trip. Prices are
// rounded to the nearest whole currency unit; the rounding is part of
// the contract, not a display concern.
func (e *Engine) Quote(distanceMeters, durationSeconds float64) (map[models.VehicleClass]int, error) {
	if distanceMeters < 0 || durationSeconds < 0 ||
		math.IsNaN(distanceMeters) || math.IsNaN(durationSeconds) {
		return nil, ErrInvalidQuoteInput
	}
	km := distanceMeters / 1000
	min := durationSeconds / 60
	out := make(map[models.VehicleClass]int, len(e.rates))
	for class, r := range e.rates {
		out[class] = int(math.Round(r.Base + km*r.PerKm + min*r.PerMinute))
	}
	return out, nil
}

// Classes returns the configured class set.
func (e *Engine) Classes() []models.VehicleClass {
	out := make([]models.VehicleClass, 0, len(e.rates))
	for c := range e.rates {
		out = append(out, c)
	}
	return out
}

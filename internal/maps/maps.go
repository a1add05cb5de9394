package maps

import (
	"context"
	"errors"
	"fmt"

	gmaps "googlemaps.github.io/maps"

	"github.com/example/ride-dispatch/internal/models"
)

var (
	// ErrNoRoute means the routing backend found no path between the
	// two addresses.
	ErrNoRoute = errors.New("maps: no route between addresses")
	// ErrUnavailable wraps transport or quota failures from the
	// geocoding backend.
	ErrUnavailable = errors.New("maps: geocoding service unavailable")
)

// Resolver is the geocoding/routing boundary: addresses in, coordinates
// and trip metrics out. The core never parses addresses itself.
type Resolver interface {
	Coordinates(ctx context.Context, address string) (models.Coord, error)
	// RouteInfo returns driving distance in meters and duration in
	// seconds between two addresses.
	RouteInfo(ctx context.Context, origin, destination string) (distanceMeters, durationSeconds float64, err error)
}

// GoogleResolver resolves through the Google Maps Geocoding and
// Distance Matrix APIs. Route lookups are cached briefly: the same
// pickup/destination pair is queried once for the quote and once more
// at ride creation.
type GoogleResolver struct {
	client *gmaps.Client
	routes *routeCache
}

func NewGoogleResolver(apiKey string) (*GoogleResolver, error) {
	c, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &GoogleResolver{client: c, routes: newRouteCache(defaultRouteTTL)}, nil
}

func (g *GoogleResolver) Coordinates(ctx context.Context, address string) (models.Coord, error) {
	results, err := g.client.Geocode(ctx, &gmaps.GeocodingRequest{Address: address})
	if err != nil {
		return models.Coord{}, fmt.Errorf("%w: geocode %q: %v", ErrUnavailable, address, err)
	}
	if len(results) == 0 {
		return models.Coord{}, fmt.Errorf("%w: no result for %q", ErrUnavailable, address)
	}
	loc := results[0].Geometry.Location
	return models.Coord{Lat: loc.Lat, Lng: loc.Lng}, nil
}

func (g *GoogleResolver) RouteInfo(ctx context.Context, origin, destination string) (float64, float64, error) {
	if v, ok := g.routes.get(origin, destination); ok {
		return v.distanceM, v.durationS, nil
	}
	resp, err := g.client.DistanceMatrix(ctx, &gmaps.DistanceMatrixRequest{
		Origins:      []string{origin},
		Destinations: []string{destination},
		Mode:         gmaps.TravelModeDriving,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: distance matrix: %v", ErrUnavailable, err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, 0, ErrNoRoute
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, 0, fmt.Errorf("%w: status %s", ErrNoRoute, el.Status)
	}
	distanceM := float64(el.Distance.Meters)
	durationS := el.Duration.Seconds()
	g.routes.set(origin, destination, route{distanceM: distanceM, durationS: durationS})
	return distanceM, durationS, nil
}

// Disabled is wired when no API key is configured; every lookup fails
// with ErrUnavailable so the server can still start for local work
// that does not touch geocoding.
type Disabled struct{}

func (Disabled) Coordinates(context.Context, string) (models.Coord, error) {
	return models.Coord{}, ErrUnavailable
}

func (Disabled) RouteInfo(context.Context, string, string) (float64, float64, error) {
	return 0, 0, ErrUnavailable
}

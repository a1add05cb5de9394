package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ride-dispatch/internal/fare"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/maps"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/presence"
	"github.com/example/ride-dispatch/internal/storage"
)

const fanoutTimeout = 10 * time.Second

// Orchestrator composes the fare engine, proximity index, presence
// registry and ride store into the ride lifecycle operations. Each
// mutating operation performs exactly one storage write followed by at
// most one push notification, in that order.
type Orchestrator struct {
	Fare     *fare.Engine
	Geo      geo.Index
	Presence presence.Registry
	Rides    storage.RideStore
	Riders   storage.RiderDirectory
	Maps     maps.Resolver
	Logger   *slog.Logger

	// RadiusKm bounds the candidate search around the pickup point.
	RadiusKm float64
	// CodeDigits is the verification code length.
	CodeDigits int
}

// NewRideNotice is the fan-out payload pushed to candidate operators.
// The ride projection inside it never carries the verification code.
type NewRideNotice struct {
	Ride  models.Ride  `json:"ride"`
	Rider models.Rider `json:"rider"`
}

// QuoteFare prices the trip for every vehicle class without creating
// anything.
func (o *Orchestrator) QuoteFare(ctx context.Context, pickup, destination string) (map[models.VehicleClass]int, error) {
	if pickup == "" || destination == "" {
		return nil, ErrInvalidRideRequest
	}
	distanceM, durationS, err := o.Maps.RouteInfo(ctx, pickup, destination)
	if err != nil {
		return nil, err
	}
	return o.Fare.Quote(distanceM, durationS)
}

// CreateRide validates the request, quotes the fare, persists the new
// pending ride and returns it. Candidate fan-out runs afterwards in
// its own goroutine so the caller's response never blocks on it.
func (o *Orchestrator) CreateRide(ctx context.Context, riderID string, req models.RideRequest) (*models.Ride, error) {
	if riderID == "" || req.Pickup == "" || req.Destination == "" || !req.Class.Valid() {
		return nil, ErrInvalidRideRequest
	}

	distanceM, durationS, err := o.Maps.RouteInfo(ctx, req.Pickup, req.Destination)
	if err != nil {
		return nil, err
	}
	quote, err := o.Fare.Quote(distanceM, durationS)
	if err != nil {
		return nil, err
	}
	price, ok := quote[req.Class]
	if !ok {
		return nil, ErrInvalidRideRequest
	}

	code, err := newCode(o.CodeDigits)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ride := &models.Ride{
		ID:          newRideID(),
		RiderID:     riderID,
		Pickup:      req.Pickup,
		Destination: req.Destination,
		Class:       req.Class,
		Fare:        price,
		Code:        code,
		Status:      models.StatusPending,
		DistanceM:   distanceM,
		DurationS:   durationS,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.Rides.CreateRide(ctx, ride); err != nil {
		return nil, fmt.Errorf("persist ride: %w", err)
	}
	observability.RidesCreatedTotal.Inc()

	go o.fanOut(*ride)

	return ride, nil
}

// fanOut notifies every available operator near the pickup point.
// Failures here are logged and isolated: the ride already exists and
// its creator already has a response.
func (o *Orchestrator) fanOut(ride models.Ride) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
	defer cancel()

	center, err := o.Maps.Coordinates(ctx, ride.Pickup)
	if err != nil {
		observability.FanoutSkippedTotal.Inc()
		o.Logger.Warn("fan-out abandoned: pickup geocode failed", "ride_id", ride.ID, "error", err)
		return
	}
	candidates, err := o.Geo.FindNear(ctx, center, o.RadiusKm)
	if err != nil {
		observability.FanoutSkippedTotal.Inc()
		o.Logger.Warn("fan-out abandoned: proximity query failed", "ride_id", ride.ID, "error", err)
		return
	}

	rider, err := o.Riders.GetRider(ctx, ride.RiderID)
	if err != nil {
		rider = models.Rider{ID: ride.RiderID}
	}
	notice := NewRideNotice{Ride: ride.WithoutCode(), Rider: rider}

	for _, op := range candidates {
		if !op.Available {
			continue
		}
		if err := o.Presence.Send(op.ID, "new-ride", notice); err != nil {
			observability.PushDroppedTotal.Inc()
			o.Logger.Info("new-ride push dropped", "ride_id", ride.ID, "operator_id", op.ID, "error", err)
			continue
		}
		observability.FanoutCandidatesTotal.Inc()
	}
}

// AcceptRide drives pending -> accepted for the calling operator. The
// store settles concurrent acceptance: exactly one caller wins, the
// rest get ErrRideNotFound. On success the rider is told who accepted,
// code included.
func (o *Orchestrator) AcceptRide(ctx context.Context, operatorID, rideID string) (*models.Ride, error) {
	if operatorID == "" || rideID == "" {
		return nil, ErrInvalidRideRequest
	}
	ride, err := o.Rides.AcceptRide(ctx, rideID, operatorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	observability.RidesAcceptedTotal.Inc()
	o.notifyRider(ride.RiderID, "ride-confirmed", ride)
	return ride, nil
}

// StartRide drives accepted -> ongoing once the operator presents the
// verification code the rider shared out of band.
func (o *Orchestrator) StartRide(ctx context.Context, operatorID, rideID, code string) (*models.Ride, error) {
	if operatorID == "" || rideID == "" || code == "" {
		return nil, ErrInvalidRideRequest
	}
	ride, err := o.Rides.GetRide(ctx, rideID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	if ride.OperatorID != operatorID {
		return nil, ErrRideNotFound
	}
	if ride.Status != models.StatusAccepted {
		return nil, ErrRideNotAccepted
	}
	if ride.Code != code {
		return nil, ErrInvalidCode
	}
	ride, err = o.Rides.TransitionRide(ctx, rideID, models.StatusAccepted, models.StatusOngoing)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRideNotAccepted
		}
		return nil, err
	}
	o.notifyRider(ride.RiderID, "ride-started", ride)
	return ride, nil
}

// EndRide drives ongoing -> completed. The assigned-operator check is
// repeated here even though acceptance already bound the operator,
// because this transition is reachable directly by ride id.
func (o *Orchestrator) EndRide(ctx context.Context, operatorID, rideID string) (*models.Ride, error) {
	if operatorID == "" || rideID == "" {
		return nil, ErrInvalidRideRequest
	}
	ride, err := o.Rides.GetRide(ctx, rideID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	if ride.OperatorID != operatorID {
		return nil, ErrRideNotFound
	}
	if ride.Status != models.StatusOngoing {
		return nil, ErrRideNotOngoing
	}
	ride, err = o.Rides.TransitionRide(ctx, rideID, models.StatusOngoing, models.StatusCompleted)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRideNotOngoing
		}
		return nil, err
	}
	observability.RidesCompletedTotal.Inc()
	o.notifyRider(ride.RiderID, "ride-ended", ride)
	return ride, nil
}

// notifyRider pushes one lifecycle event to the ride's rider. An
// offline rider is a dropped push, never an operation failure.
func (o *Orchestrator) notifyRider(riderID, event string, ride *models.Ride) {
	if err := o.Presence.Send(riderID, event, ride); err != nil {
		observability.PushDroppedTotal.Inc()
		o.Logger.Info("rider push dropped", "event", event, "ride_id", ride.ID, "rider_id", riderID, "error", err)
	}
}

func newRideID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/example/ride-dispatch/internal/fare"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/presence"
	"github.com/example/ride-dispatch/internal/storage"
)

type fakeGeo struct{ operators []models.Operator }

func (f *fakeGeo) FindNear(context.Context, models.Coord, float64) ([]models.Operator, error) {
	return f.operators, nil
}

func (f *fakeGeo) Upsert(_ context.Context, op models.Operator) error {
	f.operators = append(f.operators, op)
	return nil
}

type fakeResolver struct {
	distanceM float64
	durationS float64
	err       error
}

func (f *fakeResolver) Coordinates(context.Context, string) (models.Coord, error) {
	return models.Coord{Lat: 10, Lng: 10}, f.err
}

func (f *fakeResolver) RouteInfo(context.Context, string, string) (float64, float64, error) {
	return f.distanceM, f.durationS, f.err
}

// recordingRegistry captures pushes per identity; identities listed in
// offline behave as disconnected parties.
type recordingRegistry struct {
	mu      sync.Mutex
	pushes  map[string][]presence.Event
	offline map[string]bool
}

func newRecordingRegistry(offline ...string) *recordingRegistry {
	off := make(map[string]bool, len(offline))
	for _, id := range offline {
		off[id] = true
	}
	return &recordingRegistry{pushes: make(map[string][]presence.Event), offline: off}
}

func (r *recordingRegistry) Register(string, presence.Conn) {}
func (r *recordingRegistry) Unregister(string)              {}

func (r *recordingRegistry) Send(id, event string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline[id] {
		return presence.ErrNotConnected
	}
	r.pushes[id] = append(r.pushes[id], presence.Event{Event: event, Data: payload})
	return nil
}

func (r *recordingRegistry) sent(id string) []presence.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]presence.Event(nil), r.pushes[id]...)
}

func newTestOrchestrator(reg *recordingRegistry, g *fakeGeo) *Orchestrator {
	return &Orchestrator{
		Fare:       fare.NewEngine(nil),
		Geo:        g,
		Presence:   reg,
		Rides:      storage.NewMemoryRideStore(),
		Riders:     storage.NewMemoryRiders(),
		Maps:       &fakeResolver{distanceM: 4000, durationS: 600},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		RadiusKm:   2,
		CodeDigits: 6,
	}
}

func TestCreateRidePendingWithQuotedFare(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(newRecordingRegistry(), &fakeGeo{})

	ride, err := o.CreateRide(ctx, "rider-1", models.RideRequest{
		Pickup: "A", Destination: "B", Class: models.ClassCar,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ride.Status != models.StatusPending {
		t.Fatalf("status = %s, want pending", ride.Status)
	}
	if ride.OperatorID != "" {
		t.Fatal("new ride must have no operator")
	}
	// round(2.5 + 4*1.25 + 10*0.5) = 13
	if ride.Fare != 13 {
		t.Fatalf("fare = %d, want 13", ride.Fare)
	}
	if len(ride.Code) != 6 {
		t.Fatalf("code %q, want 6 digits", ride.Code)
	}
	for _, c := range ride.Code {
		if c < '0' || c > '9' {
			t.Fatalf("code %q contains non-digit", ride.Code)
		}
	}
}

func TestCreateRideValidation(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(newRecordingRegistry(), &fakeGeo{})

	cases := []struct {
		rider string
		req   models.RideRequest
	}{
		{"", models.RideRequest{Pickup: "A", Destination: "B", Class: models.ClassCar}},
		{"rider-1", models.RideRequest{Destination: "B", Class: models.ClassCar}},
		{"rider-1", models.RideRequest{Pickup: "A", Class: models.ClassCar}},
		{"rider-1", models.RideRequest{Pickup: "A", Destination: "B"}},
		{"rider-1", models.RideRequest{Pickup: "A", Destination: "B", Class: "rickshaw"}},
	}
	for _, c := range cases {
		if _, err := o.CreateRide(ctx, c.rider, c.req); !errors.Is(err, ErrInvalidRideRequest) {
			t.Errorf("CreateRide(%q, %+v): got %v, want ErrInvalidRideRequest", c.rider, c.req, err)
		}
	}
}

func TestCreateRideUpstreamFailureSurfaced(t *testing.T) {
	o := newTestOrchestrator(newRecordingRegistry(), &fakeGeo{})
	o.Maps = &fakeResolver{err: errors.New("matrix down")}

	if _, err := o.CreateRide(context.Background(), "rider-1", models.RideRequest{
		Pickup: "A", Destination: "B", Class: models.ClassCar,
	}); err == nil {
		t.Fatal("route failure before the mutation must surface synchronously")
	}
}

func TestFanOutStripsCodeAndIsolatesFailures(t *testing.T) {
	reg := newRecordingRegistry("op-2")
	g := &fakeGeo{operators: []models.Operator{
		{ID: "op-1", Position: models.Coord{Lat: 10, Lng: 10}, Available: true},
		{ID: "op-2", Position: models.Coord{Lat: 10, Lng: 10}, Available: true},
		{ID: "op-3", Position: models.Coord{Lat: 10, Lng: 10}, Available: true},
		{ID: "op-4", Position: models.Coord{Lat: 10, Lng: 10}, Available: false},
	}}
	o := newTestOrchestrator(reg, g)

	ride := models.Ride{
		ID: "r1", RiderID: "rider-1", Pickup: "A", Destination: "B",
		Class: models.ClassCar, Fare: 13, Code: "482019", Status: models.StatusPending,
	}
	o.fanOut(ride)

	for _, id := range []string{"op-1", "op-3"} {
		events := reg.sent(id)
		if len(events) != 1 || events[0].Event != "new-ride" {
			t.Fatalf("%s: expected one new-ride push, got %v", id, events)
		}
		notice := events[0].Data.(NewRideNotice)
		if notice.Ride.Code != "" {
			t.Fatalf("%s: verification code leaked in fan-out", id)
		}
		if notice.Rider.ID != "rider-1" {
			t.Fatalf("%s: rider profile missing", id)
		}
	}
	if len(reg.sent("op-2")) != 0 {
		t.Fatal("offline candidate should receive nothing")
	}
	if len(reg.sent("op-4")) != 0 {
		t.Fatal("unavailable operators must be filtered before push")
	}
}

func TestAcceptRideNotifiesRiderWithCode(t *testing.T) {
	ctx := context.Background()
	reg := newRecordingRegistry()
	o := newTestOrchestrator(reg, &fakeGeo{})

	created, err := o.CreateRide(ctx, "rider-1", models.RideRequest{
		Pickup: "A", Destination: "B", Class: models.ClassCar,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ride, err := o.AcceptRide(ctx, "op-X", created.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if ride.Status != models.StatusAccepted || ride.OperatorID != "op-X" {
		t.Fatalf("got status=%s operator=%s", ride.Status, ride.OperatorID)
	}

	events := reg.sent("rider-1")
	if len(events) != 1 || events[0].Event != "ride-confirmed" {
		t.Fatalf("rider events: %v", events)
	}
	pushed := events[0].Data.(*models.Ride)
	if pushed.OperatorID != "op-X" {
		t.Fatal("confirmation must name the assigned operator")
	}
	if pushed.Code != created.Code {
		t.Fatal("confirmation must reveal the verification code to the rider")
	}
}

func TestAcceptRideConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(newRecordingRegistry(), &fakeGeo{})

	created, err := o.CreateRide(ctx, "rider-1", models.RideRequest{
		Pickup: "A", Destination: "B", Class: models.ClassCar,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, op := range []string{"op-A", "op-B"} {
		wg.Add(1)
		go func(operator string) {
			defer wg.Done()
			_, err := o.AcceptRide(ctx, operator, created.ID)
			results <- err
		}(op)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrRideNotFound):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning acceptor, got %d", wins)
	}
}

func TestAcceptRideUnknown(t *testing.T) {
	o := newTestOrchestrator(newRecordingRegistry(), &fakeGeo{})
	if _, err := o.AcceptRide(context.Background(), "op-1", "missing"); !errors.Is(err, ErrRideNotFound) {
		t.Fatalf("got %v, want ErrRideNotFound", err)
	}
}

func TestStartRideOTPGate(t *testing.T) {
	ctx := context.Background()
	reg := newRecordingRegistry()
	o := newTestOrchestrator(reg, &fakeGeo{})

	created, _ := o.CreateRide(ctx, "rider-1", models.RideRequest{
		Pickup: "A", Destination: "B", Class: models.ClassCar,
	})

	// Not accepted yet: the status guard fires before the code check.
	if _, err := o.StartRide(ctx, "op-X", created.ID, created.Code); !errors.Is(err, ErrRideNotFound) {
		t.Fatalf("start before accept: got %v, want ErrRideNotFound (no assigned operator)", err)
	}

	if _, err := o.AcceptRide(ctx, "op-X", created.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Wrong code leaves the status untouched.
	if _, err := o.StartRide(ctx, "op-X", created.ID, "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("wrong code: got %v, want ErrInvalidCode", err)
	}
	r, _ := o.Rides.GetRide(ctx, created.ID)
	if r.Status != models.StatusAccepted {
		t.Fatalf("status changed to %s after rejected code", r.Status)
	}

	// Only the assigned operator may start.
	if _, err := o.StartRide(ctx, "op-other", created.ID, created.Code); !errors.Is(err, ErrRideNotFound) {
		t.Fatalf("foreign operator: got %v, want ErrRideNotFound", err)
	}

	ride, err := o.StartRide(ctx, "op-X", created.ID, created.Code)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if ride.Status != models.StatusOngoing {
		t.Fatalf("status = %s, want ongoing", ride.Status)
	}

	// Starting again is an out-of-order attempt.
	if _, err := o.StartRide(ctx, "op-X", created.ID, created.Code); !errors.Is(err, ErrRideNotAccepted) {
		t.Fatalf("second start: got %v, want ErrRideNotAccepted", err)
	}

	events := reg.sent("rider-1")
	if len(events) != 2 || events[1].Event != "ride-started" {
		t.Fatalf("rider events: %v", events)
	}
}

func TestEndRideLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := newRecordingRegistry()
	o := newTestOrchestrator(reg, &fakeGeo{})

	created, _ := o.CreateRide(ctx, "rider-1", models.RideRequest{
		Pickup: "A", Destination: "B", Class: models.ClassCar,
	})
	_, _ = o.AcceptRide(ctx, "op-X", created.ID)

	// Cannot end before the trip started.
	if _, err := o.EndRide(ctx, "op-X", created.ID); !errors.Is(err, ErrRideNotOngoing) {
		t.Fatalf("end before start: got %v, want ErrRideNotOngoing", err)
	}

	_, _ = o.StartRide(ctx, "op-X", created.ID, created.Code)

	// The defense-in-depth operator check.
	if _, err := o.EndRide(ctx, "op-imposter", created.ID); !errors.Is(err, ErrRideNotFound) {
		t.Fatalf("imposter end: got %v, want ErrRideNotFound", err)
	}

	ride, err := o.EndRide(ctx, "op-X", created.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ride.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", ride.Status)
	}

	events := reg.sent("rider-1")
	if len(events) != 3 || events[2].Event != "ride-ended" {
		t.Fatalf("rider events: %v", events)
	}
}

func TestNotifyRiderOfflineIsNotAnError(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(newRecordingRegistry("rider-1"), &fakeGeo{})

	created, _ := o.CreateRide(ctx, "rider-1", models.RideRequest{
		Pickup: "A", Destination: "B", Class: models.ClassCar,
	})
	if _, err := o.AcceptRide(ctx, "op-X", created.ID); err != nil {
		t.Fatalf("accept with offline rider must still succeed: %v", err)
	}
}

func TestQuoteFare(t *testing.T) {
	o := newTestOrchestrator(newRecordingRegistry(), &fakeGeo{})
	q, err := o.QuoteFare(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q[models.ClassCar] != 13 || q[models.ClassAuto] != 7 || q[models.ClassMoto] != 5 {
		t.Fatalf("quote = %v", q)
	}
	if _, err := o.QuoteFare(context.Background(), "", "B"); !errors.Is(err, ErrInvalidRideRequest) {
		t.Fatalf("empty pickup: got %v", err)
	}
}

func TestNewCodeLengthAndCharset(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := newCode(6)
		if err != nil {
			t.Fatalf("newCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q, want 6 digits", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("code %q contains non-digit", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("codes look constant; expected randomness")
	}
}

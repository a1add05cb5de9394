package models

import "testing"

func TestTransitionTableForwardOnly(t *testing.T) {
	legal := [][2]RideStatus{
		{StatusPending, StatusAccepted},
		{StatusPending, StatusCancelled},
		{StatusAccepted, StatusOngoing},
		{StatusAccepted, StatusCancelled},
		{StatusOngoing, StatusCompleted},
	}
	for _, tr := range legal {
		if !CanTransition(tr[0], tr[1]) {
			t.Errorf("expected %s -> %s to be legal", tr[0], tr[1])
		}
	}

	all := []RideStatus{StatusPending, StatusAccepted, StatusOngoing, StatusCompleted, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			allowed := false
			for _, tr := range legal {
				if tr[0] == from && tr[1] == to {
					allowed = true
				}
			}
			if CanTransition(from, to) != allowed {
				t.Errorf("transition %s -> %s: got %v, want %v", from, to, !allowed, allowed)
			}
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []RideStatus{StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
		for _, to := range []RideStatus{StatusPending, StatusAccepted, StatusOngoing, StatusCompleted, StatusCancelled} {
			if CanTransition(s, to) {
				t.Errorf("terminal %s must not transition to %s", s, to)
			}
		}
	}
}

func TestVehicleClassValid(t *testing.T) {
	for _, c := range []VehicleClass{ClassAuto, ClassCar, ClassMoto} {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if VehicleClass("motorcycle").Valid() {
		t.Error("motorcycle is not a recognized class; it was unified into moto")
	}
}

func TestWithoutCodeStripsSecret(t *testing.T) {
	r := Ride{ID: "r1", Code: "482019", Status: StatusPending}
	out := r.WithoutCode()
	if out.Code != "" {
		t.Fatalf("code leaked: %q", out.Code)
	}
	if r.Code != "482019" {
		t.Fatal("WithoutCode must not mutate the receiver")
	}
}

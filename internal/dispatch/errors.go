package dispatch

import "errors"

// Dispatch errors surfaced to callers. Fan-out failures are not here:
// those are logged per candidate and never surfaced, because the ride
// response has already been returned by then.
var (
	ErrInvalidRideRequest = errors.New("dispatch: rider, pickup, destination and vehicle class are required")
	ErrRideNotFound       = errors.New("dispatch: ride not found")
	ErrInvalidCode        = errors.New("dispatch: invalid verification code")
	ErrRideNotAccepted    = errors.New("dispatch: ride is not in accepted state")
	ErrRideNotOngoing     = errors.New("dispatch: ride is not in ongoing state")
)

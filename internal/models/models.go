package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// VehicleClass is the rider-selectable vehicle category. The set is
// closed; fare rates are configured per class.
type VehicleClass string

const (
	ClassAuto VehicleClass = "auto"
	ClassCar  VehicleClass = "car"
	ClassMoto VehicleClass = "moto"
)

func (c VehicleClass) Valid() bool {
	switch c {
	case ClassAuto, ClassCar, ClassMoto:
		return true
	}
	return false
}

// Rider is the trip-requesting party. The profile itself is owned by
// the external account store; this is the projection attached to
// operator-facing notifications.
type Rider struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Operator is the trip-providing party as seen by the proximity index:
// identity, last reported position and the availability flag. Position
// is zero until the first report.
type Operator struct {
	ID        string       `json:"id"`
	Position  Coord        `json:"position"`
	Class     VehicleClass `json:"vehicle_class,omitempty"`
	Available bool         `json:"available"`
	Updated   time.Time    `json:"updated,omitempty"`
}

type RideRequest struct {
	Pickup      string       `json:"pickup"`
	Destination string       `json:"destination"`
	Class       VehicleClass `json:"vehicle_class"`
}

// Ride is the dispatch record. OperatorID stays empty exactly while
// the ride is pending. Fare and Code are fixed at creation. Code is
// the shared start secret: it must never reach candidate operators
// during fan-out, so outbound projections go through WithoutCode.
type Ride struct {
	ID          string       `json:"id"`
	RiderID     string       `json:"rider_id"`
	OperatorID  string       `json:"operator_id,omitempty"`
	Pickup      string       `json:"pickup"`
	Destination string       `json:"destination"`
	Class       VehicleClass `json:"vehicle_class"`
	Fare        int          `json:"fare"`
	Code        string       `json:"code,omitempty"`
	Status      RideStatus   `json:"status"`
	DistanceM   float64      `json:"distance_m,omitempty"`
	DurationS   float64      `json:"duration_s,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// WithoutCode returns a copy safe to show parties that must not learn
// the start secret.
func (r Ride) WithoutCode() Ride {
	r.Code = ""
	return r
}

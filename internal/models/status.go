package models

// RideStatus is the ride lifecycle state. Transitions are strictly
// forward: pending -> accepted -> ongoing -> completed, with cancelled
// terminal from pending or accepted. No cancellation operation is
// exposed yet; the state exists so stores and audits can represent it.
type RideStatus string

const (
	StatusPending   RideStatus = "pending"
	StatusAccepted  RideStatus = "accepted"
	StatusOngoing   RideStatus = "ongoing"
	StatusCompleted RideStatus = "completed"
	StatusCancelled RideStatus = "cancelled"
)

func (s RideStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s RideStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

var transitions = map[RideStatus]map[RideStatus]bool{
	StatusPending:  {StatusAccepted: true, StatusCancelled: true},
	StatusAccepted: {StatusOngoing: true, StatusCancelled: true},
	StatusOngoing:  {StatusCompleted: true},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
// Anything not in the table, including every backward move, is
// rejected.
func CanTransition(from, to RideStatus) bool {
	return transitions[from][to]
}

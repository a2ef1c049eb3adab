// README: Ride aggregate, status event log and the lifecycle transition table.
package ride

import (
	"time"

	"isuride/internal/types"
)

type Status string

const (
	StatusMatching  Status = "MATCHING"
	StatusEnroute   Status = "ENROUTE"
	StatusPickup    Status = "PICKUP"
	StatusCarrying  Status = "CARRYING"
	StatusArrived   Status = "ARRIVED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

var allStatuses = []Status{
	StatusMatching, StatusEnroute, StatusPickup, StatusCarrying,
	StatusArrived, StatusCompleted, StatusCanceled,
}

func ParseStatus(v string) (Status, bool) {
	for _, s := range allStatuses {
		if string(s) == v {
			return s, true
		}
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

type Ride struct {
	ID          types.ID
	UserID      types.ID
	ChairID     *types.ID
	Pickup      types.Coordinate
	Destination types.Coordinate
	Evaluation  *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *Ride) AssignedTo(chairID types.ID) bool {
	return r.ChairID != nil && *r.ChairID == chairID
}

// StatusEvent is one append-only entry of a ride's timeline.
type StatusEvent struct {
	ID        types.ID
	RideID    types.ID
	Status    Status
	ChairID   *types.ID
	CreatedAt time.Time
}

// AllowedTransitions represents the ride state flow (diagram) as code.
// MATCHING -> MATCHING is a decline before acceptance.
var AllowedTransitions = map[Status][]Status{
	StatusMatching: {StatusEnroute, StatusMatching, StatusCanceled},
	StatusEnroute:  {StatusPickup, StatusMatching, StatusCanceled},
	StatusPickup:   {StatusCarrying, StatusCanceled},
	StatusCarrying: {StatusArrived, StatusCanceled},
	StatusArrived:  {StatusCompleted, StatusCanceled},
}

// driverTransitions is the subset a chair may request explicitly; PICKUP and
// ARRIVED come from location pings and COMPLETED from the passenger.
var driverTransitions = map[Status][]Status{
	StatusMatching: {StatusEnroute, StatusMatching},
	StatusEnroute:  {StatusMatching},
	StatusPickup:   {StatusCarrying},
}

func CanTransition(from, to Status) bool {
	return contains(AllowedTransitions[from], to)
}

func CanDriverRequest(from, to Status) bool {
	return contains(driverTransitions[from], to)
}

func contains(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Passenger is the requesting user as a chair sees it.
type Passenger struct {
	ID   types.ID
	Name string
}

// Transition is one applied status change, reported after commit.
type Transition struct {
	Ride    Ride
	Status  Status
	ChairID *types.ID
	Trigger string
	At      time.Time
}

const (
	TriggerPassenger = "passenger"
	TriggerChair     = "chair"
	TriggerLocation  = "location"
)

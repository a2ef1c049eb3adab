// README: Dispatch results returned to polling chairs and to the nearby chair search.
package dispatch

import (
	"time"

	"isuride/internal/modules/ride"
	"isuride/internal/modules/stats"
	"isuride/internal/types"
)

// Assignment is the ride a chair is working on, with its passenger.
type Assignment struct {
	Ride      ride.Ride
	Status    ride.Status
	Passenger ride.Passenger
}

type NearbyQuery struct {
	Coordinate types.Coordinate
	// Radius in grid units; nil means the configured default and 0 only
	// matches chairs at the exact coordinate.
	Radius *int
}

type NearbyChair struct {
	Chair      stats.ChairView
	Coordinate types.Coordinate
}

type NearbyResult struct {
	Chairs      []NearbyChair
	RetrievedAt time.Time
}

const (
	outcomeExisting = "existing"
	outcomeClaimed  = "claimed"
	outcomeNone     = "none"
)

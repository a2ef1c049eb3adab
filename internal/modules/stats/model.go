// README: Per-chair statistics derived from completed rides and the ping log.
package stats

import (
	"time"

	"isuride/internal/types"
)

// RecentLimit caps how many qualifying rides a chair's stats list.
const RecentLimit = 5

type RecentRide struct {
	ID          types.ID         `json:"id"`
	Pickup      types.Coordinate `json:"pickup_coordinate"`
	Destination types.Coordinate `json:"destination_coordinate"`
	Distance    int              `json:"distance"`
	// Duration is ARRIVED minus CARRYING in milliseconds.
	Duration   int64 `json:"duration"`
	Evaluation int   `json:"evaluation"`
}

type ChairStats struct {
	RecentRides        []RecentRide `json:"recent_rides"`
	TotalRidesCount    int          `json:"total_rides_count"`
	TotalEvaluationAvg float64      `json:"total_evaluation_avg"`
}

type ChairView struct {
	ID    types.ID   `json:"id"`
	Name  string     `json:"name"`
	Model string     `json:"model"`
	Stats ChairStats `json:"stats"`
}

// RideRecord is one ride assigned to the chair with its status timeline.
type RideRecord struct {
	ID          types.ID
	Pickup      types.Coordinate
	Destination types.Coordinate
	Evaluation  *int
	CreatedAt   time.Time
	Events      []Event
}

type Event struct {
	Status string
	At     time.Time
}

type Ping struct {
	Coordinate types.Coordinate
	At         time.Time
}

func (r RideRecord) firstAt(status string) (time.Time, bool) {
	for _, e := range r.Events {
		if e.Status == status {
			return e.At, true
		}
	}
	return time.Time{}, false
}

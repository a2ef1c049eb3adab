// README: Pure stats aggregation over already loaded rides and pings.
package stats

import "isuride/internal/types"

// Compute aggregates rides given most recently updated first. pings must be in
// chronological order.
//
// A ride qualifies when it reached CARRYING, ARRIVED and COMPLETED and was
// evaluated. The average evaluation is taken over qualifying rides only;
// TotalRidesCount still counts every assigned ride.
func Compute(rides []RideRecord, pings []Ping) ChairStats {
	out := ChairStats{
		RecentRides:     []RecentRide{},
		TotalRidesCount: len(rides),
	}

	sum, qualifying := 0, 0
	for _, r := range rides {
		carrying, ok := r.firstAt("CARRYING")
		if !ok {
			continue
		}
		arrived, ok := r.firstAt("ARRIVED")
		if !ok {
			continue
		}
		completed, ok := r.firstAt("COMPLETED")
		if !ok || r.Evaluation == nil {
			continue
		}

		distance := 0
		last := r.Pickup
		for _, p := range pings {
			if p.At.Before(r.CreatedAt) || p.At.After(completed) {
				continue
			}
			distance += types.Distance(last, p.Coordinate)
			last = p.Coordinate
		}
		distance += types.Distance(last, r.Destination)

		qualifying++
		sum += *r.Evaluation
		if len(out.RecentRides) < RecentLimit {
			out.RecentRides = append(out.RecentRides, RecentRide{
				ID:          r.ID,
				Pickup:      r.Pickup,
				Destination: r.Destination,
				Distance:    distance,
				Duration:    arrived.Sub(carrying).Milliseconds(),
				Evaluation:  *r.Evaluation,
			})
		}
	}

	if qualifying > 0 {
		out.TotalEvaluationAvg = float64(sum) / float64(qualifying)
	}
	return out
}

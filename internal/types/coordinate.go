// README: Integer grid coordinate and the grid distance used for fares and stats.
package types

type Coordinate struct {
	Latitude  int `json:"latitude"`
	Longitude int `json:"longitude"`
}

// Distance is the Manhattan distance between two grid points.
func Distance(a, b Coordinate) int {
	return abs(a.Latitude-b.Latitude) + abs(a.Longitude-b.Longitude)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// README: Owner aggregate, chair summaries and the sales report.
package owner

import (
	"time"

	"isuride/internal/types"
)

type Owner struct {
	ID                 types.ID
	Name               string
	AccessToken        string
	ChairRegisterToken string
	CreatedAt          time.Time
}

// ChairSummary is one owned chair with its odometer.
type ChairSummary struct {
	ID           types.ID
	Name         string
	Model        string
	Active       bool
	RegisteredAt time.Time
	// TotalDistance sums grid distances between consecutive pings.
	TotalDistance int
	// DistanceUpdatedAt is the newest ping time, nil before the first ping.
	DistanceUpdatedAt *time.Time
}

type ChairSales struct {
	ID    types.ID
	Name  string
	Sales int
}

type ModelSales struct {
	Model string
	Sales int
}

type Sales struct {
	Total  int
	Chairs []ChairSales
	Models []ModelSales
}

// SalesRange bounds the COMPLETED time of counted rides, both ends inclusive.
type SalesRange struct {
	Since time.Time
	Until time.Time
}

type completedRide struct {
	ChairID     types.ID
	Pickup      types.Coordinate
	Destination types.Coordinate
}

// README: Fare calculator; deterministic from pickup, destination and discount.
package fare

import (
	"isuride/internal/config"
	"isuride/internal/types"
)

type Calculator struct {
	initial     int
	perDistance int
}

func NewCalculator(cfg config.FareConfig) *Calculator {
	return &Calculator{initial: cfg.InitialFare, perDistance: cfg.FarePerDistance}
}

// Metered is the distance-dependent part before discount.
func (c *Calculator) Metered(pickup, destination types.Coordinate) int {
	return c.perDistance * types.Distance(pickup, destination)
}

// Undiscounted is the list price; owner sales are reported at this value.
func (c *Calculator) Undiscounted(pickup, destination types.Coordinate) int {
	return c.initial + c.Metered(pickup, destination)
}

// Quote applies the discount to the metered part only, so the result is never
// below the initial fare.
func (c *Calculator) Quote(pickup, destination types.Coordinate, discount int) Quote {
	metered := c.Metered(pickup, destination)
	applied := discount
	if applied < 0 {
		applied = 0
	}
	if applied > metered {
		applied = metered
	}
	return Quote{
		Fare:      c.initial + metered - applied,
		Discount:  applied,
		Breakdown: Breakdown{Initial: c.initial, Metered: metered},
	}
}

func (c *Calculator) Fare(pickup, destination types.Coordinate, discount int) int {
	return c.Quote(pickup, destination, discount).Fare
}

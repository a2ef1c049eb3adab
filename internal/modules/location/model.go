// README: Chair location ping, the append-only telemetry record.
package location

import (
	"time"

	"isuride/internal/types"
)

type Ping struct {
	ID         types.ID
	ChairID    types.ID
	Coordinate types.Coordinate
	CreatedAt  time.Time
}

// README: Clock helper for timestamps persisted to Postgres.
package types

import "time"

// Now is the wall clock truncated to the microsecond precision Postgres stores,
// so a timestamp read back compares equal to the one written.
func Now() time.Time {
	return time.Now().Truncate(time.Microsecond)
}

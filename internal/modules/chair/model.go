// README: Chair aggregate as registered by an owner.
package chair

import (
	"time"

	"isuride/internal/types"
)

type Chair struct {
	ID          types.ID
	OwnerID     types.ID
	Name        string
	Model       string
	IsActive    bool
	AccessToken string
	CreatedAt   time.Time
}

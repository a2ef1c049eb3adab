// README: Passenger account.
package user

import (
	"time"

	"isuride/internal/types"
)

type User struct {
	ID             types.ID
	Username       string
	Firstname      string
	Lastname       string
	DateOfBirth    string
	AccessToken    string
	InvitationCode string
	CreatedAt      time.Time
}

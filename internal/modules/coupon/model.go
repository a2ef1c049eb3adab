// README: Coupon ledger entries and campaign constants.
package coupon

import (
	"time"

	"isuride/internal/types"
)

const (
	SignupCode         = "CP_NEW2024"
	SignupDiscount     = 3000
	InvitationDiscount = 1500
	RewardDiscount     = 1000
	// InvitationCap is the maximum number of invitees per invitation code.
	InvitationCap = 3

	invitationPrefix = "INV_"
	rewardPrefix     = "RWD_"
)

type Coupon struct {
	ID        types.ID
	UserID    types.ID
	Code      string
	Discount  int
	CreatedAt time.Time
	UsedBy    *types.ID
}

func (c *Coupon) Used() bool {
	return c.UsedBy != nil
}

// InvitationCode is the coupon code granted to invitees of an invitation code.
func InvitationCode(invitation string) string {
	return invitationPrefix + invitation
}

// RewardCode is the coupon code granted to the inviter.
func RewardCode(invitation string) string {
	return rewardPrefix + invitation
}

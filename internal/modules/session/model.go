// README: Session principals; an access token resolves to exactly one role and id.
package session

import "isuride/internal/types"

type Role string

const (
	RoleUser  Role = "user"
	RoleOwner Role = "owner"
	RoleChair Role = "chair"
)

type Principal struct {
	Role Role
	ID   types.ID
}

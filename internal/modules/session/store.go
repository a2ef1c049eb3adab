// README: Token lookup against the users, owners and chairs tables.
package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"isuride/internal/infra"
	"isuride/internal/types"
)

var lookupSQL = map[Role]string{
	RoleUser:  `SELECT id FROM users WHERE access_token = $1`,
	RoleOwner: `SELECT id FROM owners WHERE access_token = $1`,
	RoleChair: `SELECT id FROM chairs WHERE access_token = $1`,
}

type Store struct {
	db infra.Querier
}

func NewStore(db infra.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) Lookup(ctx context.Context, role Role, token string) (types.ID, error) {
	q, ok := lookupSQL[role]
	if !ok {
		return "", ErrInvalidToken
	}
	var id types.ID
	err := s.db.QueryRow(ctx, q, token).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidToken
	}
	return id, err
}

// README: Dispatch store; chair row locks and the idle chair scan.
package dispatch

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"isuride/internal/infra"
	"isuride/internal/modules/ride"
	"isuride/internal/types"
)

type Store struct {
	db infra.Querier
}

func NewStore(db infra.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(q infra.Querier) *Store {
	return &Store{db: q}
}

// LockChair serializes polls of one chair.
func (s *Store) LockChair(ctx context.Context, chairID types.ID) error {
	var id string
	err := s.db.QueryRow(ctx, `SELECT id FROM chairs WHERE id = $1 FOR UPDATE`, string(chairID)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrChairNotFound
	}
	return err
}

// IdleChairs lists chairs with no ride in a non-terminal status.
func (s *Store) IdleChairs(ctx context.Context) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.id FROM chairs c
		WHERE NOT EXISTS (
			SELECT 1 FROM rides r
			WHERE r.chair_id = c.id
			  AND `+ride.CurrentStatusSQL+` NOT IN ('COMPLETED', 'CANCELED')
		)
		ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

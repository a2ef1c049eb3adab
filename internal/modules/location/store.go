// README: Location store; pings are appended to Postgres and never updated.
package location

import (
	"context"
	"time"

	"isuride/internal/infra"
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

func (s *Store) Insert(ctx context.Context, p *Ping) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chair_locations (id, chair_id, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(p.ID), string(p.ChairID), p.Coordinate.Latitude, p.Coordinate.Longitude, p.CreatedAt,
	)
	return err
}

// LatestSince returns the newest ping of each listed chair, skipping chairs
// whose newest ping is older than since.
func (s *Store) LatestSince(ctx context.Context, chairIDs []types.ID, since time.Time) (map[types.ID]Ping, error) {
	ids := make([]string, len(chairIDs))
	for i, id := range chairIDs {
		ids[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (chair_id) id, chair_id, latitude, longitude, created_at
		FROM chair_locations
		WHERE chair_id = ANY($1)
		ORDER BY chair_id, created_at DESC, id DESC`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ID]Ping, len(chairIDs))
	for rows.Next() {
		var p Ping
		if err := rows.Scan(&p.ID, &p.ChairID, &p.Coordinate.Latitude, &p.Coordinate.Longitude, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.CreatedAt.Before(since) {
			continue
		}
		out[p.ChairID] = p
	}
	return out, rows.Err()
}

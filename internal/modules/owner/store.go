// README: Owner store backed by PostgreSQL.
package owner

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

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

func (s *Store) Insert(ctx context.Context, o *Owner) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO owners (id, name, access_token, chair_register_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		string(o.ID), o.Name, o.AccessToken, o.ChairRegisterToken, o.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrNameTaken
	}
	return err
}

// chairDistanceSQL is the per-chair odometer over the ping log.
const chairDistanceSQL = `
	SELECT chair_id,
	       SUM(ABS(latitude - prev_lat) + ABS(longitude - prev_lon)) AS total,
	       MAX(created_at) AS updated_at
	FROM (
		SELECT chair_id, latitude, longitude, created_at,
		       LAG(latitude) OVER w AS prev_lat,
		       LAG(longitude) OVER w AS prev_lon
		FROM chair_locations
		WHERE chair_id IN (SELECT id FROM chairs WHERE owner_id = $1)
		WINDOW w AS (PARTITION BY chair_id ORDER BY created_at, id)
	) p
	GROUP BY chair_id`

func (s *Store) Chairs(ctx context.Context, ownerID types.ID) ([]ChairSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.name, c.model, c.is_active, c.created_at,
		       COALESCE(d.total, 0)::BIGINT, d.updated_at
		FROM chairs c
		LEFT JOIN (`+chairDistanceSQL+`) d ON d.chair_id = c.id
		WHERE c.owner_id = $1
		ORDER BY c.created_at, c.id`, string(ownerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChairSummary
	for rows.Next() {
		var c ChairSummary
		var total int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Model, &c.Active, &c.RegisteredAt, &total, &c.DistanceUpdatedAt); err != nil {
			return nil, err
		}
		c.TotalDistance = int(total)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CompletedRides lists rides of the owner's chairs whose COMPLETED event falls
// in [since, until).
func (s *Store) CompletedRides(ctx context.Context, ownerID types.ID, since, until time.Time) ([]completedRide, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.chair_id, r.pickup_latitude, r.pickup_longitude, r.destination_latitude, r.destination_longitude
		FROM rides r
		JOIN chairs c ON c.id = r.chair_id
		JOIN ride_statuses s ON s.ride_id = r.id AND s.status = 'COMPLETED'
		WHERE c.owner_id = $1 AND s.created_at >= $2 AND s.created_at < $3`,
		string(ownerID), since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []completedRide
	for rows.Next() {
		var r completedRide
		if err := rows.Scan(&r.ChairID,
			&r.Pickup.Latitude, &r.Pickup.Longitude,
			&r.Destination.Latitude, &r.Destination.Longitude,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// README: Stats reads; loads a chair's rides, their status timelines and its pings.
package stats

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

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

type chairRow struct {
	ID    types.ID
	Name  string
	Model string
}

func (s *Store) chair(ctx context.Context, chairID types.ID) (*chairRow, error) {
	var c chairRow
	err := s.db.QueryRow(ctx, `SELECT id, name, model FROM chairs WHERE id = $1`, string(chairID)).
		Scan(&c.ID, &c.Name, &c.Model)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChairNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// RidesByChair returns every ride assigned to chairID, most recently updated first.
func (s *Store) RidesByChair(ctx context.Context, chairID types.ID) ([]RideRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, pickup_latitude, pickup_longitude, destination_latitude, destination_longitude,
		       evaluation, created_at
		FROM rides
		WHERE chair_id = $1
		ORDER BY updated_at DESC, id DESC`, string(chairID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RideRecord
	for rows.Next() {
		var r RideRecord
		if err := rows.Scan(
			&r.ID,
			&r.Pickup.Latitude, &r.Pickup.Longitude,
			&r.Destination.Latitude, &r.Destination.Longitude,
			&r.Evaluation, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	index := make(map[types.ID]int, len(out))
	for i, r := range out {
		ids[i] = string(r.ID)
		index[r.ID] = i
	}
	evRows, err := s.db.Query(ctx, `
		SELECT ride_id, status, created_at
		FROM ride_statuses
		WHERE ride_id = ANY($1)
		ORDER BY created_at, id`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer evRows.Close()
	for evRows.Next() {
		var rideID types.ID
		var ev Event
		if err := evRows.Scan(&rideID, &ev.Status, &ev.At); err != nil {
			return nil, err
		}
		i := index[rideID]
		out[i].Events = append(out[i].Events, ev)
	}
	return out, evRows.Err()
}

// PingsSince returns the chair's pings at or after since, oldest first.
func (s *Store) PingsSince(ctx context.Context, chairID types.ID, since time.Time) ([]Ping, error) {
	rows, err := s.db.Query(ctx, `
		SELECT latitude, longitude, created_at
		FROM chair_locations
		WHERE chair_id = $1 AND created_at >= $2
		ORDER BY created_at, id`, string(chairID), since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ping
	for rows.Next() {
		var p Ping
		if err := rows.Scan(&p.Coordinate.Latitude, &p.Coordinate.Longitude, &p.At); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

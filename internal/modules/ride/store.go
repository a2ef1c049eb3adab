// README: Ride store backed by PostgreSQL; the status log is append-only and the current status is always derived.
package ride

import (
	"context"
	"database/sql"
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

// CurrentStatusSQL yields the latest status of the ride aliased r.
const CurrentStatusSQL = `(SELECT s.status FROM ride_statuses s WHERE s.ride_id = r.id ORDER BY s.created_at DESC, s.id DESC LIMIT 1)`

const rideColumns = `r.id, r.user_id, r.chair_id,
	r.pickup_latitude, r.pickup_longitude, r.destination_latitude, r.destination_longitude,
	r.evaluation, r.created_at, r.updated_at`

func (s *Store) Insert(ctx context.Context, r *Ride) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (
			id, user_id, chair_id,
			pickup_latitude, pickup_longitude, destination_latitude, destination_longitude,
			evaluation, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(r.ID),
		string(r.UserID),
		toStringPtr(r.ChairID),
		r.Pickup.Latitude, r.Pickup.Longitude,
		r.Destination.Latitude, r.Destination.Longitude,
		r.Evaluation,
		r.CreatedAt,
		r.UpdatedAt,
	)
	return err
}

// AppendStatus inserts the event and bumps rides.updated_at to its time.
func (s *Store) AppendStatus(ctx context.Context, e *StatusEvent) error {
	if _, err := s.db.Exec(ctx, `
		INSERT INTO ride_statuses (id, ride_id, status, chair_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(e.ID), string(e.RideID), string(e.Status), toStringPtr(e.ChairID), e.CreatedAt,
	); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `UPDATE rides SET updated_at = $1 WHERE id = $2`, e.CreatedAt, string(e.RideID))
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.getOne(ctx, `SELECT `+rideColumns+` FROM rides r WHERE r.id = $1`, id)
}

// GetForUpdate locks the ride row for the rest of the transaction.
func (s *Store) GetForUpdate(ctx context.Context, id types.ID) (*Ride, error) {
	return s.getOne(ctx, `SELECT `+rideColumns+` FROM rides r WHERE r.id = $1 FOR UPDATE`, id)
}

func (s *Store) getOne(ctx context.Context, query string, id types.ID) (*Ride, error) {
	r, err := scanRide(s.db.QueryRow(ctx, query, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRideNotFound
	}
	return r, err
}

// LockUser takes the user row lock that serializes ride creation per user.
func (s *Store) LockUser(ctx context.Context, userID types.ID) error {
	var id string
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, string(userID)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}

func (s *Store) CurrentStatus(ctx context.Context, rideID types.ID) (Status, error) {
	var st string
	err := s.db.QueryRow(ctx, `
		SELECT status FROM ride_statuses
		WHERE ride_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, string(rideID),
	).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrRideNotFound
	}
	return Status(st), err
}

func (s *Store) Statuses(ctx context.Context, rideID types.ID) ([]StatusEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, status, chair_id, created_at
		FROM ride_statuses
		WHERE ride_id = $1
		ORDER BY created_at, id`, string(rideID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusEvent
	for rows.Next() {
		var e StatusEvent
		var chairID sql.NullString
		if err := rows.Scan(&e.ID, &e.RideID, &e.Status, &chairID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ChairID = toIDPtr(chairID)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) HasActiveByUser(ctx context.Context, userID types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides r
			WHERE r.user_id = $1
			  AND `+CurrentStatusSQL+` NOT IN ('COMPLETED', 'CANCELED')
		)`, string(userID),
	).Scan(&exists)
	return exists, err
}

func (s *Store) CountByUser(ctx context.Context, userID types.ID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM rides WHERE user_id = $1`, string(userID)).Scan(&n)
	return n, err
}

// LatestByUser returns the user's most recently requested ride, or nil.
func (s *Store) LatestByUser(ctx context.Context, userID types.ID) (*Ride, error) {
	return s.optional(ctx, `
		SELECT `+rideColumns+` FROM rides r
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT 1`, string(userID))
}

// LatestByChair returns the chair's most recently updated ride, or nil. That
// ride is the chair's current work when it is not terminal.
func (s *Store) LatestByChair(ctx context.Context, chairID types.ID) (*Ride, error) {
	return s.optional(ctx, `
		SELECT `+rideColumns+` FROM rides r
		WHERE r.chair_id = $1
		ORDER BY r.updated_at DESC, r.id DESC
		LIMIT 1`, string(chairID))
}

// NextUnassigned locks one unassigned ride waiting in MATCHING that chairID
// has not declined before. Rows locked by a concurrent poller are skipped.
func (s *Store) NextUnassigned(ctx context.Context, chairID types.ID, newestFirst bool) (*Ride, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	return s.optional(ctx, `
		SELECT `+rideColumns+` FROM rides r
		WHERE r.chair_id IS NULL
		  AND `+CurrentStatusSQL+` = 'MATCHING'
		  AND NOT EXISTS (
			SELECT 1 FROM ride_statuses d
			WHERE d.ride_id = r.id AND d.status = 'MATCHING' AND d.chair_id = $1
		  )
		ORDER BY r.created_at `+order+`, r.id `+order+`
		LIMIT 1
		FOR UPDATE OF r SKIP LOCKED`, string(chairID))
}

// AssignChair binds the ride only while it is still unassigned.
func (s *Store) AssignChair(ctx context.Context, rideID, chairID types.ID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides SET chair_id = $1, updated_at = $2
		WHERE id = $3 AND chair_id IS NULL`,
		string(chairID), at, string(rideID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ClearChair(ctx context.Context, rideID types.ID) error {
	_, err := s.db.Exec(ctx, `UPDATE rides SET chair_id = NULL WHERE id = $1`, string(rideID))
	return err
}

func (s *Store) SetEvaluation(ctx context.Context, rideID types.ID, evaluation int) error {
	_, err := s.db.Exec(ctx, `UPDATE rides SET evaluation = $1 WHERE id = $2`, evaluation, string(rideID))
	return err
}

func (s *Store) PaymentToken(ctx context.Context, userID types.ID) (string, error) {
	var token string
	err := s.db.QueryRow(ctx, `SELECT token FROM payment_tokens WHERE user_id = $1`, string(userID)).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrPaymentTokenNotFound
	}
	return token, err
}

// CompletedRideIDs lists the user's settled rides in creation order.
func (s *Store) CompletedRideIDs(ctx context.Context, userID types.ID) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id FROM rides r
		WHERE r.user_id = $1
		  AND `+CurrentStatusSQL+` = 'COMPLETED'
		ORDER BY r.created_at ASC, r.id ASC`, string(userID),
	)
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

type historyRow struct {
	Ride       Ride
	ChairName  string
	ChairModel string
	OwnerName  string
	Discount   int
}

// CompletedWithChair lists the user's completed rides, newest first, joined with
// the chair, its owner and the discount of the bound coupon.
func (s *Store) CompletedWithChair(ctx context.Context, userID types.ID) ([]historyRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rideColumns+`,
		       c.name, c.model, o.name,
		       COALESCE((SELECT cp.discount FROM coupons cp WHERE cp.used_by = r.id), 0)
		FROM rides r
		JOIN chairs c ON c.id = r.chair_id
		JOIN owners o ON o.id = c.owner_id
		WHERE r.user_id = $1
		  AND `+CurrentStatusSQL+` = 'COMPLETED'
		ORDER BY r.created_at DESC, r.id DESC`, string(userID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []historyRow
	for rows.Next() {
		var h historyRow
		var chairID sql.NullString
		if err := rows.Scan(
			&h.Ride.ID, &h.Ride.UserID, &chairID,
			&h.Ride.Pickup.Latitude, &h.Ride.Pickup.Longitude,
			&h.Ride.Destination.Latitude, &h.Ride.Destination.Longitude,
			&h.Ride.Evaluation, &h.Ride.CreatedAt, &h.Ride.UpdatedAt,
			&h.ChairName, &h.ChairModel, &h.OwnerName, &h.Discount,
		); err != nil {
			return nil, err
		}
		h.Ride.ChairID = toIDPtr(chairID)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Passenger returns the user's id and display name, read under a share lock.
func (s *Store) Passenger(ctx context.Context, userID types.ID) (Passenger, error) {
	var p Passenger
	var first, last string
	err := s.db.QueryRow(ctx, `SELECT id, firstname, lastname FROM users WHERE id = $1 FOR SHARE`, string(userID)).
		Scan(&p.ID, &first, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return Passenger{}, ErrUserNotFound
	}
	p.Name = first + " " + last
	return p, err
}

func (s *Store) optional(ctx context.Context, query string, args ...any) (*Ride, error) {
	r, err := scanRide(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	var chairID sql.NullString
	if err := row.Scan(
		&r.ID, &r.UserID, &chairID,
		&r.Pickup.Latitude, &r.Pickup.Longitude,
		&r.Destination.Latitude, &r.Destination.Longitude,
		&r.Evaluation, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.ChairID = toIDPtr(chairID)
	return &r, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v sql.NullString) *types.ID {
	if !v.Valid {
		return nil
	}
	id := types.ID(v.String)
	return &id
}

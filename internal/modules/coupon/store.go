// README: Coupon store backed by PostgreSQL.
package coupon

import (
	"context"
	"database/sql"
	"errors"

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

// WithTx returns a store running on q, usually a pgx.Tx.
func (s *Store) WithTx(q infra.Querier) *Store {
	return &Store{db: q}
}

const couponColumns = `id, user_id, code, discount, created_at, used_by`

func (s *Store) Insert(ctx context.Context, c *Coupon) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO coupons (id, user_id, code, discount, created_at, used_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(c.ID), string(c.UserID), c.Code, c.Discount, c.CreatedAt, toStringPtr(c.UsedBy),
	)
	return err
}

// BoundToRide returns the coupon consumed by rideID, or nil.
func (s *Store) BoundToRide(ctx context.Context, rideID types.ID) (*Coupon, error) {
	row := s.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE used_by = $1`, string(rideID))
	return scanOptional(row)
}

// UnusedByCode returns the user's oldest unused coupon with code, or nil.
func (s *Store) UnusedByCode(ctx context.Context, userID types.ID, code string, lock bool) (*Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons
		WHERE user_id = $1 AND code = $2 AND used_by IS NULL
		ORDER BY created_at, id LIMIT 1`
	if lock {
		q += ` FOR UPDATE`
	}
	return scanOptional(s.db.QueryRow(ctx, q, string(userID), code))
}

// OldestUnused returns the user's earliest granted unused coupon, or nil.
func (s *Store) OldestUnused(ctx context.Context, userID types.ID, lock bool) (*Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons
		WHERE user_id = $1 AND used_by IS NULL
		ORDER BY created_at, id LIMIT 1`
	if lock {
		q += ` FOR UPDATE`
	}
	return scanOptional(s.db.QueryRow(ctx, q, string(userID)))
}

// Bind sets used_by only while it is still NULL.
func (s *Store) Bind(ctx context.Context, couponID, rideID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE coupons SET used_by = $1
		WHERE id = $2 AND used_by IS NULL`,
		string(rideID), string(couponID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// LockByCode locks every coupon with code and returns how many there are.
func (s *Store) LockByCode(ctx context.Context, code string) (int, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM coupons WHERE code = $1 FOR UPDATE`, code)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func (s *Store) ListByUser(ctx context.Context, userID types.ID) ([]Coupon, error) {
	rows, err := s.db.Query(ctx, `SELECT `+couponColumns+` FROM coupons WHERE user_id = $1 ORDER BY created_at, id`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Coupon
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanOptional(row pgx.Row) (*Coupon, error) {
	c, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func scan(row pgx.Row) (*Coupon, error) {
	var c Coupon
	var usedBy sql.NullString
	if err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.Discount, &c.CreatedAt, &usedBy); err != nil {
		return nil, err
	}
	if usedBy.Valid {
		id := types.ID(usedBy.String)
		c.UsedBy = &id
	}
	return &c, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

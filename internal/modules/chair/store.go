// README: Chair store backed by PostgreSQL.
package chair

import (
	"context"
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

func (s *Store) WithTx(q infra.Querier) *Store {
	return &Store{db: q}
}

// OwnerByRegisterToken resolves the owner a chair_register_token belongs to.
func (s *Store) OwnerByRegisterToken(ctx context.Context, token string) (types.ID, error) {
	var id types.ID
	err := s.db.QueryRow(ctx, `SELECT id FROM owners WHERE chair_register_token = $1`, token).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidRegisterToken
	}
	return id, err
}

func (s *Store) Insert(ctx context.Context, c *Chair) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chairs (id, owner_id, name, model, is_active, access_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		string(c.ID), string(c.OwnerID), c.Name, c.Model, c.IsActive, c.AccessToken, c.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Chair, error) {
	var c Chair
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_id, name, model, is_active, access_token, created_at
		FROM chairs WHERE id = $1`, string(id),
	).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Model, &c.IsActive, &c.AccessToken, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChairNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) SetActive(ctx context.Context, id types.ID, active bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE chairs SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrChairNotFound
	}
	return nil
}

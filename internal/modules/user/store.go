// README: User store backed by PostgreSQL.
package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
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

func (s *Store) Insert(ctx context.Context, u *User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, username, firstname, lastname, date_of_birth, access_token, invitation_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		string(u.ID), u.Username, u.Firstname, u.Lastname, u.DateOfBirth, u.AccessToken, u.InvitationCode, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return err
}

// LockByInvitationCode locks the inviter row; concurrent redemptions of one
// code queue behind it.
func (s *Store) LockByInvitationCode(ctx context.Context, code string) (types.ID, error) {
	var id types.ID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE invitation_code = $1 FOR UPDATE`, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvitationInvalid
	}
	return id, err
}

// UpsertPaymentToken keeps one token per user; a new registration replaces it.
func (s *Store) UpsertPaymentToken(ctx context.Context, userID types.ID, token string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO payment_tokens (user_id, token)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, created_at = NOW()`,
		string(userID), token,
	)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// README: User service; registration grants the signup coupon and redeems an optional invitation atomically.
package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"isuride/internal/infra"
	"isuride/internal/modules/coupon"
	"isuride/internal/types"
)

var (
	ErrUsernameTaken     = types.NewError(types.ErrConflict, "username already registered")
	ErrInvitationInvalid = types.NewError(types.ErrValidation, "invitation code cannot be used")
	ErrMissingFields     = types.NewError(types.ErrValidation, "required fields are empty")
	ErrMissingToken      = types.NewError(types.ErrValidation, "token is required")
)

type CouponIssuer interface {
	GrantSignup(ctx context.Context, tx pgx.Tx, userID types.ID) error
	RedeemInvitation(ctx context.Context, tx pgx.Tx, cmd coupon.RedeemCommand) error
}

type Service struct {
	tx      *infra.TxRunner
	store   *Store
	coupons CouponIssuer
	now     func() time.Time
}

func NewService(tx *infra.TxRunner, store *Store, coupons CouponIssuer) *Service {
	return &Service{tx: tx, store: store, coupons: coupons, now: types.Now}
}

type RegisterCommand struct {
	Username       string
	Firstname      string
	Lastname       string
	DateOfBirth    string
	InvitationCode string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	if strings.TrimSpace(cmd.Username) == "" || cmd.Firstname == "" || cmd.Lastname == "" || cmd.DateOfBirth == "" {
		return nil, ErrMissingFields
	}

	u := &User{
		ID:             types.NewID(),
		Username:       cmd.Username,
		Firstname:      cmd.Firstname,
		Lastname:       cmd.Lastname,
		DateOfBirth:    cmd.DateOfBirth,
		AccessToken:    types.RandomToken(32),
		InvitationCode: types.RandomToken(15),
		CreatedAt:      s.now(),
	}
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		store := s.store.WithTx(tx)
		if err := store.Insert(ctx, u); err != nil {
			return err
		}
		if err := s.coupons.GrantSignup(ctx, tx, u.ID); err != nil {
			return err
		}
		if cmd.InvitationCode == "" {
			return nil
		}
		inviter, err := store.LockByInvitationCode(ctx, cmd.InvitationCode)
		if err != nil {
			return err
		}
		return s.coupons.RedeemInvitation(ctx, tx, coupon.RedeemCommand{
			InviteeID:  u.ID,
			InviterID:  inviter,
			Invitation: cmd.InvitationCode,
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) RegisterPaymentToken(ctx context.Context, userID types.ID, token string) error {
	if token == "" {
		return ErrMissingToken
	}
	if err := s.store.UpsertPaymentToken(ctx, userID, token); err != nil {
		return fmt.Errorf("save payment token: %w", err)
	}
	return nil
}

// README: Coupon ledger; issuance, selection priority and at-most-once binding.
package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"isuride/internal/infra"
	"isuride/internal/observability"
	"isuride/internal/types"
)

var (
	ErrInvitationExhausted = types.NewError(types.ErrConflict, "invitation code cannot be used anymore")
	ErrAlreadyUsed         = types.NewError(types.ErrConflict, "coupon already used")
)

type Service struct {
	store *Store
	now   func() time.Time
}

func NewService(store *Store) *Service {
	return &Service{store: store, now: types.Now}
}

// GrantSignup gives a new user the signup campaign coupon.
func (s *Service) GrantSignup(ctx context.Context, tx pgx.Tx, userID types.ID) error {
	err := s.store.WithTx(tx).Insert(ctx, &Coupon{
		ID:        types.NewID(),
		UserID:    userID,
		Code:      SignupCode,
		Discount:  SignupDiscount,
		CreatedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("grant signup coupon: %w", err)
	}
	observability.CouponsIssued.WithLabelValues("signup").Inc()
	return nil
}

type RedeemCommand struct {
	InviteeID  types.ID
	InviterID  types.ID
	Invitation string
}

// RedeemInvitation grants the invitee and inviter coupons. The caller must hold
// a row lock on the inviter so concurrent redemptions of one code serialize.
func (s *Service) RedeemInvitation(ctx context.Context, tx pgx.Tx, cmd RedeemCommand) error {
	store := s.store.WithTx(tx)
	code := InvitationCode(cmd.Invitation)

	n, err := store.LockByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("count invitation coupons: %w", err)
	}
	if n >= InvitationCap {
		return ErrInvitationExhausted
	}

	now := s.now()
	if err := store.Insert(ctx, &Coupon{
		ID:        types.NewID(),
		UserID:    cmd.InviteeID,
		Code:      code,
		Discount:  InvitationDiscount,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("grant invitation coupon: %w", err)
	}
	if err := store.Insert(ctx, &Coupon{
		ID:        types.NewID(),
		UserID:    cmd.InviterID,
		Code:      RewardCode(cmd.Invitation),
		Discount:  RewardDiscount,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("grant reward coupon: %w", err)
	}
	observability.CouponsIssued.WithLabelValues("invitation").Inc()
	observability.CouponsIssued.WithLabelValues("reward").Inc()
	return nil
}

// Select picks the coupon a new ride would use: the signup coupon on a first
// ride, otherwise the oldest unused one. Returns nil when none qualifies.
func (s *Service) Select(ctx context.Context, q infra.Querier, userID types.ID, firstRide, lock bool) (*Coupon, error) {
	store := s.store.WithTx(q)
	if firstRide {
		c, err := store.UnusedByCode(ctx, userID, SignupCode, lock)
		if err != nil {
			return nil, fmt.Errorf("select signup coupon: %w", err)
		}
		if c != nil {
			return c, nil
		}
	}
	c, err := store.OldestUnused(ctx, userID, lock)
	if err != nil {
		return nil, fmt.Errorf("select coupon: %w", err)
	}
	return c, nil
}

// BindForRide selects a coupon under lock and consumes it for rideID.
// Returns the bound coupon, or nil when the user has none left.
func (s *Service) BindForRide(ctx context.Context, tx pgx.Tx, userID, rideID types.ID, firstRide bool) (*Coupon, error) {
	c, err := s.Select(ctx, tx, userID, firstRide, true)
	if err != nil || c == nil {
		return nil, err
	}
	ok, err := s.store.WithTx(tx).Bind(ctx, c.ID, rideID)
	if err != nil {
		return nil, fmt.Errorf("bind coupon: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyUsed
	}
	c.UsedBy = &rideID
	observability.CouponsBound.Inc()
	return c, nil
}

// DiscountForRide is the discount of the coupon bound to rideID, 0 if none.
func (s *Service) DiscountForRide(ctx context.Context, q infra.Querier, rideID types.ID) (int, error) {
	c, err := s.store.WithTx(q).BoundToRide(ctx, rideID)
	if err != nil {
		return 0, fmt.Errorf("load bound coupon: %w", err)
	}
	if c == nil {
		return 0, nil
	}
	return c.Discount, nil
}

// EstimateDiscount is the discount a ride requested now would receive.
func (s *Service) EstimateDiscount(ctx context.Context, q infra.Querier, userID types.ID, firstRide bool) (int, error) {
	c, err := s.Select(ctx, q, userID, firstRide, false)
	if err != nil || c == nil {
		return 0, err
	}
	return c.Discount, nil
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID) ([]Coupon, error) {
	return s.store.ListByUser(ctx, userID)
}

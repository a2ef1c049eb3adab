package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isuride/internal/infra"
	"isuride/internal/modules/coupon"
	"isuride/internal/testutil"
	"isuride/internal/types"
)

func setup(t *testing.T) (*Service, *pgxpool.Pool) {
	t.Helper()
	db := testutil.NewPool(t)
	return NewService(infra.NewTxRunner(db), NewStore(db), coupon.NewService(coupon.NewStore(db))), db
}

func register(name, invitation string) RegisterCommand {
	return RegisterCommand{Username: name, Firstname: "Hana", Lastname: "Isu", DateOfBirth: "2000-01-01", InvitationCode: invitation}
}

func codesOf(t *testing.T, db *pgxpool.Pool, userID types.ID) []string {
	t.Helper()
	rows, err := db.Query(context.Background(), `SELECT code FROM coupons WHERE user_id = $1 ORDER BY code`, string(userID))
	require.NoError(t, err)
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		require.NoError(t, rows.Scan(&c))
		out = append(out, c)
	}
	return out
}

func TestRegister_GrantsSignupCoupon(t *testing.T) {
	svc, db := setup(t)
	u, err := svc.Register(context.Background(), register("alice", ""))
	require.NoError(t, err)

	assert.Len(t, u.AccessToken, 64)
	assert.Len(t, u.InvitationCode, 30)
	assert.Equal(t, []string{coupon.SignupCode}, codesOf(t, db, u.ID))
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterCommand{Username: "x"})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.Register(ctx, register("bob", ""))
	require.NoError(t, err)
	_, err = svc.Register(ctx, register("bob", ""))
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestRegister_Invitation(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	inviter, err := svc.Register(ctx, register("host", ""))
	require.NoError(t, err)

	guest, err := svc.Register(ctx, register("guest", inviter.InvitationCode))
	require.NoError(t, err)

	assert.Equal(t, []string{coupon.SignupCode, coupon.InvitationCode(inviter.InvitationCode)}, codesOf(t, db, guest.ID))
	assert.Equal(t, []string{coupon.SignupCode, coupon.RewardCode(inviter.InvitationCode)}, codesOf(t, db, inviter.ID))
}

func TestRegister_UnknownInvitationRollsBack(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, register("lost", "nobody-has-this"))
	assert.ErrorIs(t, err, ErrInvitationInvalid)

	var n int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE username = 'lost'`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM coupons`).Scan(&n))
	assert.Zero(t, n)
}

func TestRegister_InvitationCapUnderConcurrency(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	inviter, err := svc.Register(ctx, register("influencer", ""))
	require.NoError(t, err)

	const attempts = 10
	errs := make(chan error, attempts)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.Register(ctx, register(fmt.Sprintf("fan-%d", i), inviter.InvitationCode))
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		require.True(t, errors.Is(err, coupon.ErrInvitationExhausted), "unexpected error: %v", err)
	}
	assert.Equal(t, coupon.InvitationCap, success)

	var rewards, users int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM coupons WHERE code = $1`, coupon.RewardCode(inviter.InvitationCode)).Scan(&rewards))
	assert.Equal(t, coupon.InvitationCap, rewards)
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE username LIKE 'fan-%'`).Scan(&users))
	assert.Equal(t, coupon.InvitationCap, users, "rejected registrations leave no user behind")
}

func TestRegisterPaymentToken_Replaces(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, register("payer", ""))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RegisterPaymentToken(ctx, u.ID, ""), ErrMissingToken)
	require.NoError(t, svc.RegisterPaymentToken(ctx, u.ID, "first"))
	require.NoError(t, svc.RegisterPaymentToken(ctx, u.ID, "second"))

	var token string
	require.NoError(t, db.QueryRow(ctx, `SELECT token FROM payment_tokens WHERE user_id = $1`, string(u.ID)).Scan(&token))
	assert.Equal(t, "second", token)
}

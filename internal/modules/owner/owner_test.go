package owner

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isuride/internal/config"
	"isuride/internal/modules/fare"
	"isuride/internal/testutil"
	"isuride/internal/types"
)

func setup(t *testing.T) (*Service, *pgxpool.Pool) {
	t.Helper()
	db := testutil.NewPool(t)
	calc := fare.NewCalculator(config.FareConfig{InitialFare: 500, FarePerDistance: 100})
	return NewService(NewStore(db), calc), db
}

func addChair(t *testing.T, db *pgxpool.Pool, ownerID types.ID, name, model string, at time.Time) types.ID {
	t.Helper()
	id := types.NewID()
	_, err := db.Exec(context.Background(), `
		INSERT INTO chairs (id, owner_id, name, model, access_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		string(id), string(ownerID), name, model, types.RandomToken(32), at)
	require.NoError(t, err)
	return id
}

func addPing(t *testing.T, db *pgxpool.Pool, chairID types.ID, lat, lon int, at time.Time) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO chair_locations (id, chair_id, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(types.NewID()), string(chairID), lat, lon, at)
	require.NoError(t, err)
}

// addCompletedRide stores a ride with distance 10 completed at the given time.
func addCompletedRide(t *testing.T, db *pgxpool.Pool, chairID types.ID, completedAt time.Time) {
	t.Helper()
	ctx := context.Background()
	user := testutil.InsertUser(t, db, "rider-"+string(types.NewID()))
	rideID := types.NewID()
	created := completedAt.Add(-10 * time.Minute)
	_, err := db.Exec(ctx, `
		INSERT INTO rides (id, user_id, chair_id, pickup_latitude, pickup_longitude, destination_latitude, destination_longitude, evaluation, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, 3, 7, 5, $4, $5)`,
		string(rideID), string(user), string(chairID), created, completedAt)
	require.NoError(t, err)
	for i, st := range []string{"MATCHING", "ENROUTE", "PICKUP", "CARRYING", "ARRIVED", "COMPLETED"} {
		at := created.Add(time.Duration(i) * time.Minute)
		if st == "COMPLETED" {
			at = completedAt
		}
		_, err := db.Exec(ctx, `INSERT INTO ride_statuses (id, ride_id, status, created_at) VALUES ($1, $2, $3, $4)`,
			string(types.NewID()), string(rideID), st, at)
		require.NoError(t, err)
	}
}

func TestRegister(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	o, err := svc.Register(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, o.AccessToken, 64)
	assert.Len(t, o.ChairRegisterToken, 64)
	assert.NotEqual(t, o.AccessToken, o.ChairRegisterToken)

	_, err = svc.Register(ctx, "acme")
	assert.ErrorIs(t, err, ErrNameTaken)

	_, err = svc.Register(ctx, "  ")
	assert.ErrorIs(t, err, ErrMissingName)
}

func TestChairs_TotalDistance(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	o, err := svc.Register(ctx, "odometer")
	require.NoError(t, err)

	t0 := time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC)
	moving := addChair(t, db, o.ID, "moving", "isu-fast", t0)
	parked := addChair(t, db, o.ID, "parked", "isu-fast", t0.Add(time.Second))

	addPing(t, db, moving, 0, 0, t0)
	addPing(t, db, moving, 3, 4, t0.Add(time.Second))
	addPing(t, db, moving, 1, 4, t0.Add(2*time.Second))

	chairs, err := svc.Chairs(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, chairs, 2)

	assert.Equal(t, moving, chairs[0].ID)
	assert.Equal(t, 9, chairs[0].TotalDistance)
	require.NotNil(t, chairs[0].DistanceUpdatedAt)
	assert.True(t, t0.Add(2*time.Second).Equal(*chairs[0].DistanceUpdatedAt))

	assert.Equal(t, parked, chairs[1].ID)
	assert.Zero(t, chairs[1].TotalDistance)
	assert.Nil(t, chairs[1].DistanceUpdatedAt)

	got, err := svc.ChairDetail(ctx, o.ID, parked)
	require.NoError(t, err)
	assert.Equal(t, "parked", got.Name)

	other, err := svc.Register(ctx, "someone-else")
	require.NoError(t, err)
	_, err = svc.ChairDetail(ctx, other.ID, parked)
	assert.ErrorIs(t, err, ErrChairNotFound)
}

func TestSales(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	o, err := svc.Register(ctx, "seller")
	require.NoError(t, err)

	t0 := time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC)
	a := addChair(t, db, o.ID, "a", "isu-fast", t0)
	b := addChair(t, db, o.ID, "b", "isu-fast", t0.Add(time.Second))
	c := addChair(t, db, o.ID, "c", "isu-slow", t0.Add(2*time.Second))

	// Each ride lists at 500 + 100*10 = 1500.
	addCompletedRide(t, db, a, t0.Add(time.Hour))
	addCompletedRide(t, db, a, t0.Add(2*time.Hour))
	addCompletedRide(t, db, b, t0.Add(3*time.Hour))
	addCompletedRide(t, db, c, t0.Add(48*time.Hour))

	t.Run("all time", func(t *testing.T) {
		got, err := svc.Sales(ctx, o.ID, SalesRange{Until: t0.Add(72 * time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, 6000, got.Total)
		assert.Equal(t, []ChairSales{
			{ID: a, Name: "a", Sales: 3000},
			{ID: b, Name: "b", Sales: 1500},
			{ID: c, Name: "c", Sales: 1500},
		}, got.Chairs)
		assert.Equal(t, []ModelSales{{Model: "isu-fast", Sales: 4500}, {Model: "isu-slow", Sales: 1500}}, got.Models)
	})

	t.Run("inclusive window", func(t *testing.T) {
		got, err := svc.Sales(ctx, o.ID, SalesRange{Since: t0.Add(2 * time.Hour), Until: t0.Add(3 * time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, 3000, got.Total)
		assert.Equal(t, []ModelSales{{Model: "isu-fast", Sales: 3000}, {Model: "isu-slow", Sales: 0}}, got.Models)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := svc.Sales(ctx, o.ID, SalesRange{Since: t0.Add(time.Hour), Until: t0})
		assert.ErrorIs(t, err, ErrInvalidRange)
	})
}

func TestSales_NoChairs(t *testing.T) {
	svc, _ := setup(t)
	o, err := svc.Register(context.Background(), "empty")
	require.NoError(t, err)

	got, err := svc.Sales(context.Background(), o.ID, SalesRange{})
	require.NoError(t, err)
	assert.Zero(t, got.Total)
	assert.Empty(t, got.Chairs)
	assert.Empty(t, got.Models)
}

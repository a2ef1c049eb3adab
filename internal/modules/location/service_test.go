package location

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"isuride/internal/config"
	"isuride/internal/infra"
	"isuride/internal/modules/coupon"
	"isuride/internal/modules/fare"
	"isuride/internal/modules/ride"
	"isuride/internal/modules/stats"
	"isuride/internal/testutil"
	"isuride/internal/types"
)

type fixture struct {
	db    *pgxpool.Pool
	rides *ride.Service
	svc   *Service
	cache *Cache
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewPool(t)
	runner := infra.NewTxRunner(db)
	rides := ride.NewService(runner, ride.NewStore(db), ride.Deps{
		Coupons: coupon.NewService(coupon.NewStore(db)),
		Fares:   fare.NewCalculator(config.DefaultFare()),
		Chairs:  stats.NewService(stats.NewStore(db)),
	})
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewCache(rdb)
	return &fixture{
		db:    db,
		rides: rides,
		svc:   NewService(runner, NewStore(db), cache, rides, zap.NewNop()),
		cache: cache,
	}
}

func currentStatus(t *testing.T, db *pgxpool.Pool, rideID types.ID) ride.Status {
	t.Helper()
	s, err := ride.NewStore(db).CurrentStatus(context.Background(), rideID)
	require.NoError(t, err)
	return s
}

func TestRecord_DrivesPickupAndArrival(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.InsertUser(t, f.db, "rider")
	_, chair := testutil.InsertOwnerAndChair(t, f.db, "mover")

	pickup := types.Coordinate{Latitude: 10, Longitude: 10}
	dest := types.Coordinate{Latitude: 20, Longitude: 5}
	res, err := f.rides.Create(ctx, ride.CreateCommand{UserID: user, Pickup: pickup, Destination: dest})
	require.NoError(t, err)
	ok, err := ride.NewStore(f.db).AssignChair(ctx, res.RideID, chair, types.Now())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.rides.DriverTransition(ctx, ride.TransitionCommand{ChairID: chair, RideID: res.RideID, Status: "ENROUTE"}))

	p, err := f.svc.Record(ctx, RecordCommand{ChairID: chair, Coordinate: types.Coordinate{Latitude: 10, Longitude: 9}})
	require.NoError(t, err)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, ride.StatusEnroute, currentStatus(t, f.db, res.RideID), "near is not equal")

	_, err = f.svc.Record(ctx, RecordCommand{ChairID: chair, Coordinate: pickup})
	require.NoError(t, err)
	assert.Equal(t, ride.StatusPickup, currentStatus(t, f.db, res.RideID))

	require.NoError(t, f.rides.DriverTransition(ctx, ride.TransitionCommand{ChairID: chair, RideID: res.RideID, Status: "CARRYING"}))
	_, err = f.svc.Record(ctx, RecordCommand{ChairID: chair, Coordinate: dest})
	require.NoError(t, err)
	assert.Equal(t, ride.StatusArrived, currentStatus(t, f.db, res.RideID))

	var n int
	require.NoError(t, f.db.QueryRow(ctx, `SELECT COUNT(*) FROM chair_locations WHERE chair_id = $1`, string(chair)).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestRecord_IdleChairHasNoSideEffect(t *testing.T) {
	f := setup(t)
	_, chair := testutil.InsertOwnerAndChair(t, f.db, "idle")

	p, err := f.svc.Record(context.Background(), RecordCommand{ChairID: chair, Coordinate: types.Coordinate{Latitude: 1, Longitude: 1}})
	require.NoError(t, err)

	hits, _, err := f.cache.Get(context.Background(), []types.ID{chair})
	require.NoError(t, err)
	assert.Equal(t, p.ID, hits[chair].ID)
}

func TestLatest_FallsBackToDatabase(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, fresh := testutil.InsertOwnerAndChair(t, f.db, "fresh")
	_, stale := testutil.InsertOwnerAndChair(t, f.db, "stale")
	_, silent := testutil.InsertOwnerAndChair(t, f.db, "silent")

	now := types.Now()
	store := NewStore(f.db)
	require.NoError(t, store.Insert(ctx, &Ping{ID: types.NewID(), ChairID: fresh, Coordinate: types.Coordinate{Latitude: 4}, CreatedAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Insert(ctx, &Ping{ID: types.NewID(), ChairID: stale, Coordinate: types.Coordinate{Latitude: 5}, CreatedAt: now.Add(-10 * time.Minute)}))

	got, err := f.svc.Latest(ctx, f.db, []types.ID{fresh, stale, silent}, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[fresh].Coordinate.Latitude)
}

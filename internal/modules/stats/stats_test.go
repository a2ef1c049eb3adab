package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isuride/internal/testutil"
	"isuride/internal/types"
)

func intPtr(v int) *int { return &v }

func completedRide(id string, base time.Time, eval int) RideRecord {
	return RideRecord{
		ID:          types.ID(id),
		Pickup:      types.Coordinate{Latitude: 0, Longitude: 0},
		Destination: types.Coordinate{Latitude: 3, Longitude: 4},
		Evaluation:  intPtr(eval),
		CreatedAt:   base,
		Events: []Event{
			{Status: "MATCHING", At: base},
			{Status: "ENROUTE", At: base.Add(1 * time.Second)},
			{Status: "PICKUP", At: base.Add(2 * time.Second)},
			{Status: "CARRYING", At: base.Add(3 * time.Second)},
			{Status: "ARRIVED", At: base.Add(8 * time.Second)},
			{Status: "COMPLETED", At: base.Add(9 * time.Second)},
		},
	}
}

func TestCompute_Empty(t *testing.T) {
	got := Compute(nil, nil)
	assert.Equal(t, 0, got.TotalRidesCount)
	assert.Zero(t, got.TotalEvaluationAvg)
	assert.NotNil(t, got.RecentRides)
	assert.Empty(t, got.RecentRides)
}

func TestCompute_PathDistanceAndDuration(t *testing.T) {
	base := time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC)
	r := completedRide("r1", base, 4)
	pings := []Ping{
		{Coordinate: types.Coordinate{Latitude: 9, Longitude: 9}, At: base.Add(-time.Minute)},
		{Coordinate: types.Coordinate{Latitude: 0, Longitude: 2}, At: base.Add(2 * time.Second)},
		{Coordinate: types.Coordinate{Latitude: 5, Longitude: 2}, At: base.Add(5 * time.Second)},
		{Coordinate: types.Coordinate{Latitude: 9, Longitude: 9}, At: base.Add(time.Minute)},
	}

	got := Compute([]RideRecord{r}, pings)
	require.Len(t, got.RecentRides, 1)
	rr := got.RecentRides[0]
	// (0,0)->(0,2)=2, (0,2)->(5,2)=5, (5,2)->(3,4)=4; pings outside the ride are ignored.
	assert.Equal(t, 11, rr.Distance)
	assert.Equal(t, int64(5000), rr.Duration)
	assert.Equal(t, 4, rr.Evaluation)
	assert.Equal(t, 1, got.TotalRidesCount)
	assert.Equal(t, 4.0, got.TotalEvaluationAvg)
}

func TestCompute_AverageOverQualifyingRidesOnly(t *testing.T) {
	base := time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC)
	unfinished := RideRecord{
		ID:        "pending",
		CreatedAt: base.Add(time.Hour),
		Events:    []Event{{Status: "MATCHING", At: base.Add(time.Hour)}, {Status: "ENROUTE", At: base.Add(time.Hour)}},
	}
	rides := []RideRecord{unfinished, completedRide("r2", base.Add(time.Minute), 5), completedRide("r1", base, 2)}

	got := Compute(rides, nil)
	assert.Equal(t, 3, got.TotalRidesCount, "every assigned ride counts")
	assert.InDelta(t, 3.5, got.TotalEvaluationAvg, 1e-9, "incomplete rides do not dilute the average")
	require.Len(t, got.RecentRides, 2)
	assert.Equal(t, types.ID("r2"), got.RecentRides[0].ID)
	assert.Equal(t, 7, got.RecentRides[0].Distance, "no pings means straight pickup to destination")
}

func TestCompute_SkipsUnevaluatedAndCapsRecent(t *testing.T) {
	base := time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC)
	var rides []RideRecord
	for i := 0; i < 7; i++ {
		rides = append(rides, completedRide(string(rune('a'+i)), base.Add(time.Duration(-i)*time.Hour), 5))
	}
	noEval := completedRide("x", base, 1)
	noEval.Evaluation = nil
	rides = append(rides, noEval)

	got := Compute(rides, nil)
	assert.Equal(t, 8, got.TotalRidesCount)
	assert.Len(t, got.RecentRides, RecentLimit)
	assert.Equal(t, types.ID("a"), got.RecentRides[0].ID)
	assert.Equal(t, 5.0, got.TotalEvaluationAvg)
}

func TestChairView_FromDatabase(t *testing.T) {
	db := testutil.NewPool(t)
	ctx := context.Background()
	svc := NewService(NewStore(db))

	_, chair := testutil.InsertOwnerAndChair(t, db, "stats-chair")
	user := testutil.InsertUser(t, db, "stats-user")

	base := types.Now().Add(-time.Hour)
	rideID := types.NewID()
	_, err := db.Exec(ctx, `
		INSERT INTO rides (id, user_id, chair_id, pickup_latitude, pickup_longitude, destination_latitude, destination_longitude, evaluation, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, 3, 4, 5, $4, $5)`,
		string(rideID), string(user), string(chair), base, base.Add(10*time.Second))
	require.NoError(t, err)

	for i, st := range []string{"MATCHING", "ENROUTE", "PICKUP", "CARRYING", "ARRIVED", "COMPLETED"} {
		_, err := db.Exec(ctx, `INSERT INTO ride_statuses (id, ride_id, status, created_at) VALUES ($1, $2, $3, $4)`,
			string(types.NewID()), string(rideID), st, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	_, err = db.Exec(ctx, `INSERT INTO chair_locations (id, chair_id, latitude, longitude, created_at) VALUES ($1, $2, 3, 0, $3)`,
		string(types.NewID()), string(chair), base.Add(3*time.Second))
	require.NoError(t, err)

	view, err := svc.ChairView(ctx, db, chair)
	require.NoError(t, err)
	assert.Equal(t, "stats-chair", view.Name)
	assert.Equal(t, 1, view.Stats.TotalRidesCount)
	require.Len(t, view.Stats.RecentRides, 1)
	assert.Equal(t, 7, view.Stats.RecentRides[0].Distance)
	assert.Equal(t, int64(1000), view.Stats.RecentRides[0].Duration)
	assert.Equal(t, 5.0, view.Stats.TotalEvaluationAvg)

	_, err = svc.ChairView(ctx, db, types.NewID())
	assert.ErrorIs(t, err, ErrChairNotFound)
}

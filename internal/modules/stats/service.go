// README: Stats service; read-only view consumed by passenger ride views and nearby search.
package stats

import (
	"context"
	"fmt"

	"isuride/internal/infra"
	"isuride/internal/types"
)

var ErrChairNotFound = types.NewError(types.ErrNotFound, "chair not found")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// ChairStats runs on q so callers inside a transaction see their own writes.
func (s *Service) ChairStats(ctx context.Context, q infra.Querier, chairID types.ID) (ChairStats, error) {
	store := s.store.WithTx(q)
	rides, err := store.RidesByChair(ctx, chairID)
	if err != nil {
		return ChairStats{}, fmt.Errorf("load chair rides: %w", err)
	}
	if len(rides) == 0 {
		return Compute(nil, nil), nil
	}

	since := rides[0].CreatedAt
	for _, r := range rides[1:] {
		if r.CreatedAt.Before(since) {
			since = r.CreatedAt
		}
	}
	pings, err := store.PingsSince(ctx, chairID, since)
	if err != nil {
		return ChairStats{}, fmt.Errorf("load chair pings: %w", err)
	}
	return Compute(rides, pings), nil
}

func (s *Service) ChairView(ctx context.Context, q infra.Querier, chairID types.ID) (*ChairView, error) {
	c, err := s.store.WithTx(q).chair(ctx, chairID)
	if err != nil {
		return nil, err
	}
	st, err := s.ChairStats(ctx, q, chairID)
	if err != nil {
		return nil, err
	}
	return &ChairView{ID: c.ID, Name: c.Name, Model: c.Model, Stats: st}, nil
}

// README: Location service ingests chair pings and drives the location triggered ride transitions.
package location

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"isuride/internal/infra"
	"isuride/internal/modules/ride"
	"isuride/internal/observability"
	"isuride/internal/types"
)

// RideAdvancer is the part of the ride lifecycle a ping can move.
type RideAdvancer interface {
	ApplyPing(ctx context.Context, tx pgx.Tx, chairID types.ID, at types.Coordinate) (*ride.Transition, error)
	Notify(ctx context.Context, tr ride.Transition)
}

type Service struct {
	tx    *infra.TxRunner
	store *Store
	cache *Cache
	rides RideAdvancer
	log   *zap.Logger
	now   func() time.Time
}

// NewService wires the ping log. cache may be nil.
func NewService(tx *infra.TxRunner, store *Store, cache *Cache, rides RideAdvancer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{tx: tx, store: store, cache: cache, rides: rides, log: log, now: types.Now}
}

type RecordCommand struct {
	ChairID    types.ID
	Coordinate types.Coordinate
}

// Record appends the ping and, in the same transaction, applies the
// ENROUTE->PICKUP or CARRYING->ARRIVED transition it triggers.
func (s *Service) Record(ctx context.Context, cmd RecordCommand) (*Ping, error) {
	p := &Ping{
		ID:         types.NewID(),
		ChairID:    cmd.ChairID,
		Coordinate: cmd.Coordinate,
		CreatedAt:  s.now(),
	}

	var tr *ride.Transition
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.store.WithTx(tx).Insert(ctx, p); err != nil {
			return fmt.Errorf("insert ping: %w", err)
		}
		var err error
		tr, err = s.rides.ApplyPing(ctx, tx, p.ChairID, p.Coordinate)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.LocationPings.Inc()
	if s.cache != nil {
		if err := s.cache.Put(ctx, *p); err != nil {
			s.log.Warn("cache latest ping", zap.String("chair_id", string(p.ChairID)), zap.Error(err))
		}
	}
	if tr != nil {
		s.rides.Notify(ctx, *tr)
	}
	return p, nil
}

// Latest returns the newest ping no older than since for each chair that has
// one. Cache hits that are too old fall back to the database.
func (s *Service) Latest(ctx context.Context, q infra.Querier, chairIDs []types.ID, since time.Time) (map[types.ID]Ping, error) {
	out := make(map[types.ID]Ping, len(chairIDs))
	missing := chairIDs
	if s.cache != nil {
		hits, misses, err := s.cache.Get(ctx, chairIDs)
		if err != nil {
			s.log.Warn("read latest ping cache", zap.Error(err))
		} else {
			missing = misses
			for id, p := range hits {
				if p.CreatedAt.Before(since) {
					missing = append(missing, id)
					continue
				}
				out[id] = p
			}
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fromDB, err := s.store.WithTx(q).LatestSince(ctx, missing, since)
	if err != nil {
		return nil, fmt.Errorf("load latest pings: %w", err)
	}
	for id, p := range fromDB {
		out[id] = p
	}
	return out, nil
}

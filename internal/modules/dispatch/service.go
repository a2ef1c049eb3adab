// README: Dispatch service; a polling chair resumes its current ride or claims exactly one waiting ride.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"isuride/internal/config"
	"isuride/internal/infra"
	"isuride/internal/modules/location"
	"isuride/internal/modules/ride"
	"isuride/internal/modules/stats"
	"isuride/internal/observability"
	"isuride/internal/types"
)

var ErrChairNotFound = types.NewError(types.ErrNotFound, "chair not found")

type PingReader interface {
	Latest(ctx context.Context, q infra.Querier, chairIDs []types.ID, since time.Time) (map[types.ID]location.Ping, error)
}

type ChairViewer interface {
	ChairView(ctx context.Context, q infra.Querier, chairID types.ID) (*stats.ChairView, error)
}

type Service struct {
	tx     *infra.TxRunner
	store  *Store
	rides  *ride.Store
	pings  PingReader
	chairs ChairViewer
	cfg    config.DispatchConfig
	log    *zap.Logger
	now    func() time.Time
}

func NewService(tx *infra.TxRunner, store *Store, rides *ride.Store, pings PingReader, chairs ChairViewer, cfg config.DispatchConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		tx:     tx,
		store:  store,
		rides:  rides,
		pings:  pings,
		chairs: chairs,
		cfg:    cfg,
		log:    log,
		now:    types.Now,
	}
}

// Poll returns the chair's current ride, or claims the next waiting one.
// Returns nil when there is no work.
func (s *Service) Poll(ctx context.Context, chairID types.ID) (*Assignment, error) {
	var out *Assignment
	outcome := outcomeNone
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.store.WithTx(tx).LockChair(ctx, chairID); err != nil {
			return err
		}
		rides := s.rides.WithTx(tx)

		r, err := rides.LatestByChair(ctx, chairID)
		if err != nil {
			return fmt.Errorf("load current ride: %w", err)
		}
		if r != nil {
			status, err := rides.CurrentStatus(ctx, r.ID)
			if err != nil {
				return err
			}
			if !status.Terminal() {
				out, err = assignment(ctx, rides, r, status)
				outcome = outcomeExisting
				return err
			}
		}

		r, err = rides.NextUnassigned(ctx, chairID, s.cfg.Order == "lifo")
		if err != nil {
			return fmt.Errorf("select waiting ride: %w", err)
		}
		if r == nil {
			return nil
		}
		ok, err := rides.AssignChair(ctx, r.ID, chairID, s.now())
		if err != nil {
			return fmt.Errorf("assign chair: %w", err)
		}
		if !ok {
			return nil
		}
		id := chairID
		r.ChairID = &id
		out, err = assignment(ctx, rides, r, ride.StatusMatching)
		outcome = outcomeClaimed
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.DispatchPolls.WithLabelValues(outcome).Inc()
	if outcome == outcomeClaimed {
		s.log.Info("ride dispatched", zap.String("ride_id", string(out.Ride.ID)), zap.String("chair_id", string(chairID)))
	}
	return out, nil
}

func assignment(ctx context.Context, rides *ride.Store, r *ride.Ride, status ride.Status) (*Assignment, error) {
	p, err := rides.Passenger(ctx, r.UserID)
	if err != nil {
		return nil, fmt.Errorf("load passenger: %w", err)
	}
	return &Assignment{Ride: *r, Status: status, Passenger: p}, nil
}

// RideForChair returns a ride the chair is assigned to.
func (s *Service) RideForChair(ctx context.Context, chairID, rideID types.ID) (*Assignment, error) {
	var out *Assignment
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		rides := s.rides.WithTx(tx)
		r, err := rides.Get(ctx, rideID)
		if err != nil {
			return err
		}
		if !r.AssignedTo(chairID) {
			return ride.ErrNotAssigned
		}
		status, err := rides.CurrentStatus(ctx, r.ID)
		if err != nil {
			return err
		}
		out, err = assignment(ctx, rides, r, status)
		return err
	})
	return out, err
}

// NearbyChairs lists idle chairs whose fresh latest ping lies within the
// radius of the coordinate, by grid distance, closest first.
func (s *Service) NearbyChairs(ctx context.Context, q NearbyQuery) (*NearbyResult, error) {
	radius := s.cfg.NearbyRadius
	if q.Radius != nil {
		radius = *q.Radius
	}

	res := &NearbyResult{Chairs: []NearbyChair{}}
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		idle, err := s.store.WithTx(tx).IdleChairs(ctx)
		if err != nil {
			return fmt.Errorf("list idle chairs: %w", err)
		}
		res.RetrievedAt = s.now()
		latest, err := s.pings.Latest(ctx, tx, idle, res.RetrievedAt.Add(-s.cfg.NearbyFreshness))
		if err != nil {
			return err
		}
		for _, id := range idle {
			p, ok := latest[id]
			if !ok || types.Distance(q.Coordinate, p.Coordinate) > radius {
				continue
			}
			view, err := s.chairs.ChairView(ctx, tx, id)
			if err != nil {
				return err
			}
			res.Chairs = append(res.Chairs, NearbyChair{Chair: *view, Coordinate: p.Coordinate})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Closest first; ties keep the idle list order.
	sort.SliceStable(res.Chairs, func(i, j int) bool {
		return types.Distance(q.Coordinate, res.Chairs[i].Coordinate) < types.Distance(q.Coordinate, res.Chairs[j].Coordinate)
	})
	return res, nil
}

// README: Passenger facing ride views; fares are recomputed from the bound coupon so every read agrees with settlement.
package ride

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"isuride/internal/infra"
	"isuride/internal/modules/stats"
	"isuride/internal/types"
)

type View struct {
	Ride   Ride
	Status Status
	Fare   int
	// Chair is nil until the ride is dispatched.
	Chair *stats.ChairView
}

type HistoryChair struct {
	ID    types.ID
	Owner string
	Name  string
	Model string
}

type HistoryEntry struct {
	Ride        Ride
	Chair       HistoryChair
	Fare        int
	Evaluation  int
	RequestedAt time.Time
	CompletedAt time.Time
}

// Get returns one of the user's rides.
func (s *Service) Get(ctx context.Context, userID, rideID types.ID) (*View, error) {
	var v *View
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		r, err := s.store.WithTx(tx).Get(ctx, rideID)
		if err != nil {
			return err
		}
		if r.UserID != userID {
			return ErrRideNotFound
		}
		v, err = s.view(ctx, tx, r)
		return err
	})
	return v, err
}

// Notification returns the view of the user's latest ride, or nil if the user
// has never requested one.
func (s *Service) Notification(ctx context.Context, userID types.ID) (*View, error) {
	var v *View
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		r, err := s.store.WithTx(tx).LatestByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("load latest ride: %w", err)
		}
		if r == nil {
			return nil
		}
		v, err = s.view(ctx, tx, r)
		return err
	})
	return v, err
}

func (s *Service) view(ctx context.Context, q infra.Querier, r *Ride) (*View, error) {
	status, err := s.store.WithTx(q).CurrentStatus(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	discount, err := s.coupons.DiscountForRide(ctx, q, r.ID)
	if err != nil {
		return nil, err
	}
	v := &View{Ride: *r, Status: status, Fare: s.fares.Fare(r.Pickup, r.Destination, discount)}
	if r.ChairID != nil {
		chair, err := s.chairs.ChairView(ctx, q, *r.ChairID)
		if err != nil {
			return nil, fmt.Errorf("load chair: %w", err)
		}
		v.Chair = chair
	}
	return v, nil
}

// History lists the user's completed rides, newest first, at the fare paid.
func (s *Service) History(ctx context.Context, userID types.ID) ([]HistoryEntry, error) {
	rows, err := s.store.WithTx(s.tx.Pool()).CompletedWithChair(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load ride history: %w", err)
	}
	out := make([]HistoryEntry, 0, len(rows))
	for _, h := range rows {
		e := HistoryEntry{
			Ride: h.Ride,
			Chair: HistoryChair{
				ID:    *h.Ride.ChairID,
				Owner: h.OwnerName,
				Name:  h.ChairName,
				Model: h.ChairModel,
			},
			Fare:        s.fares.Fare(h.Ride.Pickup, h.Ride.Destination, h.Discount),
			RequestedAt: h.Ride.CreatedAt,
			CompletedAt: h.Ride.UpdatedAt,
		}
		if h.Ride.Evaluation != nil {
			e.Evaluation = *h.Ride.Evaluation
		}
		out = append(out, e)
	}
	return out, nil
}

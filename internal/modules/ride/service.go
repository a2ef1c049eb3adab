// README: Ride service implements creation, chair and location driven transitions, settlement and passenger views.
package ride

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"isuride/internal/events"
	"isuride/internal/infra"
	"isuride/internal/modules/coupon"
	"isuride/internal/modules/fare"
	"isuride/internal/modules/payment"
	"isuride/internal/modules/stats"
	"isuride/internal/observability"
	"isuride/internal/types"
)

var (
	ErrActiveRide           = types.NewError(types.ErrConflict, "ride already exists")
	ErrRideNotFound         = types.NewError(types.ErrNotFound, "ride not found")
	ErrUserNotFound         = types.NewError(types.ErrNotFound, "user not found")
	ErrPaymentTokenNotFound = types.NewError(types.ErrNotFound, "payment token not registered")
	ErrInvalidStatus        = types.NewError(types.ErrValidation, "invalid status")
	ErrInvalidTransition    = types.NewError(types.ErrValidation, "invalid state transition")
	ErrNotArrived           = types.NewError(types.ErrValidation, "not arrived yet")
	ErrInvalidEvaluation    = types.NewError(types.ErrValidation, "evaluation must be between 1 and 5")
	ErrNotAssigned          = types.NewError(types.ErrUnauthorized, "ride is not assigned to this chair")
)

type CouponLedger interface {
	BindForRide(ctx context.Context, tx pgx.Tx, userID, rideID types.ID, firstRide bool) (*coupon.Coupon, error)
	DiscountForRide(ctx context.Context, q infra.Querier, rideID types.ID) (int, error)
	EstimateDiscount(ctx context.Context, q infra.Querier, userID types.ID, firstRide bool) (int, error)
}

type Charger interface {
	Charge(ctx context.Context, req payment.ChargeRequest) error
}

type ChairViewer interface {
	ChairView(ctx context.Context, q infra.Querier, chairID types.ID) (*stats.ChairView, error)
}

type Deps struct {
	Coupons  CouponLedger
	Fares    *fare.Calculator
	Payments Charger
	Chairs   ChairViewer
	Events   events.Publisher
	Log      *zap.Logger
}

type Service struct {
	tx       *infra.TxRunner
	store    *Store
	coupons  CouponLedger
	fares    *fare.Calculator
	payments Charger
	chairs   ChairViewer
	events   events.Publisher
	log      *zap.Logger
	now      func() time.Time
}

func NewService(tx *infra.TxRunner, store *Store, deps Deps) *Service {
	s := &Service{
		tx:       tx,
		store:    store,
		coupons:  deps.Coupons,
		fares:    deps.Fares,
		payments: deps.Payments,
		chairs:   deps.Chairs,
		events:   deps.Events,
		log:      deps.Log,
		now:      types.Now,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

type CreateCommand struct {
	UserID      types.ID
	Pickup      types.Coordinate
	Destination types.Coordinate
}

type CreateResult struct {
	RideID types.ID
	Fare   int
}

// Create requests a ride. The user row lock serializes concurrent requests of
// one user so the active ride check cannot race.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*CreateResult, error) {
	var r *Ride
	var result CreateResult
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		store := s.store.WithTx(tx)
		if err := store.LockUser(ctx, cmd.UserID); err != nil {
			return err
		}
		active, err := store.HasActiveByUser(ctx, cmd.UserID)
		if err != nil {
			return fmt.Errorf("check active ride: %w", err)
		}
		if active {
			return ErrActiveRide
		}
		previous, err := store.CountByUser(ctx, cmd.UserID)
		if err != nil {
			return fmt.Errorf("count rides: %w", err)
		}

		now := s.now()
		r = &Ride{
			ID:          types.NewID(),
			UserID:      cmd.UserID,
			Pickup:      cmd.Pickup,
			Destination: cmd.Destination,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := store.Insert(ctx, r); err != nil {
			return fmt.Errorf("insert ride: %w", err)
		}
		if err := store.AppendStatus(ctx, &StatusEvent{
			ID: types.NewID(), RideID: r.ID, Status: StatusMatching, CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append status: %w", err)
		}

		bound, err := s.coupons.BindForRide(ctx, tx, cmd.UserID, r.ID, previous == 0)
		if err != nil {
			return err
		}
		discount := 0
		if bound != nil {
			discount = bound.Discount
		}
		result = CreateResult{RideID: r.ID, Fare: s.fares.Fare(r.Pickup, r.Destination, discount)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RidesCreated.Inc()
	s.Notify(ctx, Transition{Ride: *r, Status: StatusMatching, Trigger: TriggerPassenger, At: r.CreatedAt})
	return &result, nil
}

// EstimateFare quotes a ride requested now without writing anything.
func (s *Service) EstimateFare(ctx context.Context, userID types.ID, pickup, destination types.Coordinate) (fare.Quote, error) {
	db := s.tx.Pool()
	n, err := s.store.WithTx(db).CountByUser(ctx, userID)
	if err != nil {
		return fare.Quote{}, fmt.Errorf("count rides: %w", err)
	}
	discount, err := s.coupons.EstimateDiscount(ctx, db, userID, n == 0)
	if err != nil {
		return fare.Quote{}, err
	}
	return s.fares.Quote(pickup, destination, discount), nil
}

type TransitionCommand struct {
	ChairID types.ID
	RideID  types.ID
	Status  string
}

// DriverTransition applies an explicit chair request. Declining (MATCHING)
// releases the assignment so the ride can be dispatched to another chair.
func (s *Service) DriverTransition(ctx context.Context, cmd TransitionCommand) error {
	to, ok := ParseStatus(cmd.Status)
	if !ok {
		return ErrInvalidStatus
	}

	var tr Transition
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		store := s.store.WithTx(tx)
		r, err := store.GetForUpdate(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		if !r.AssignedTo(cmd.ChairID) {
			return ErrNotAssigned
		}
		cur, err := store.CurrentStatus(ctx, r.ID)
		if err != nil {
			return err
		}
		if !CanDriverRequest(cur, to) {
			return ErrInvalidTransition
		}
		if to == StatusMatching {
			if err := store.ClearChair(ctx, r.ID); err != nil {
				return fmt.Errorf("release chair: %w", err)
			}
		}

		chairID := cmd.ChairID
		at := s.now()
		if err := store.AppendStatus(ctx, &StatusEvent{
			ID: types.NewID(), RideID: r.ID, Status: to, ChairID: &chairID, CreatedAt: at,
		}); err != nil {
			return fmt.Errorf("append status: %w", err)
		}
		tr = Transition{Ride: *r, Status: to, ChairID: &chairID, Trigger: TriggerChair, At: at}
		return nil
	})
	if err != nil {
		return err
	}
	s.Notify(ctx, tr)
	return nil
}

// ApplyPing runs inside the location transaction. It advances the chair's
// current ride when the ping lands exactly on its pickup (ENROUTE) or
// destination (CARRYING). Returns nil when nothing changed.
// The ride row is locked and the event stamped after the lock, so a ping
// never lands behind a concurrent driver transition.
func (s *Service) ApplyPing(ctx context.Context, tx pgx.Tx, chairID types.ID, at types.Coordinate) (*Transition, error) {
	store := s.store.WithTx(tx)
	latest, err := store.LatestByChair(ctx, chairID)
	if err != nil {
		return nil, fmt.Errorf("load current ride: %w", err)
	}
	if latest == nil {
		return nil, nil
	}
	r, err := store.GetForUpdate(ctx, latest.ID)
	if err != nil {
		return nil, fmt.Errorf("lock current ride: %w", err)
	}
	// A decline may have released the ride since it was read.
	if !r.AssignedTo(chairID) {
		return nil, nil
	}
	cur, err := store.CurrentStatus(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	var next Status
	switch {
	case cur == StatusEnroute && at == r.Pickup:
		next = StatusPickup
	case cur == StatusCarrying && at == r.Destination:
		next = StatusArrived
	default:
		return nil, nil
	}

	id := chairID
	when := s.now()
	if err := store.AppendStatus(ctx, &StatusEvent{
		ID: types.NewID(), RideID: r.ID, Status: next, ChairID: &id, CreatedAt: when,
	}); err != nil {
		return nil, fmt.Errorf("append status: %w", err)
	}
	return &Transition{Ride: *r, Status: next, ChairID: &id, Trigger: TriggerLocation, At: when}, nil
}

type EvaluateCommand struct {
	UserID     types.ID
	RideID     types.ID
	Evaluation int
}

type EvaluateResult struct {
	Fare        int
	CompletedAt time.Time
}

// Evaluate completes an arrived ride and charges the fare. The charge runs
// inside the transaction, so a payment failure leaves the ride ARRIVED.
func (s *Service) Evaluate(ctx context.Context, cmd EvaluateCommand) (*EvaluateResult, error) {
	if cmd.Evaluation < 1 || cmd.Evaluation > 5 {
		return nil, ErrInvalidEvaluation
	}

	var tr Transition
	var result EvaluateResult
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		store := s.store.WithTx(tx)
		r, err := store.GetForUpdate(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		if r.UserID != cmd.UserID {
			return ErrRideNotFound
		}
		cur, err := store.CurrentStatus(ctx, r.ID)
		if err != nil {
			return err
		}
		if cur != StatusArrived {
			return ErrNotArrived
		}

		if err := store.SetEvaluation(ctx, r.ID, cmd.Evaluation); err != nil {
			return fmt.Errorf("set evaluation: %w", err)
		}
		at := s.now()
		if err := store.AppendStatus(ctx, &StatusEvent{
			ID: types.NewID(), RideID: r.ID, Status: StatusCompleted, CreatedAt: at,
		}); err != nil {
			return fmt.Errorf("append status: %w", err)
		}

		token, err := store.PaymentToken(ctx, r.UserID)
		if err != nil {
			return err
		}
		discount, err := s.coupons.DiscountForRide(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		amount := s.fares.Fare(r.Pickup, r.Destination, discount)

		err = s.payments.Charge(ctx, payment.ChargeRequest{
			Token:          token,
			Amount:         amount,
			IdempotencyKey: r.ID,
			History: func(ctx context.Context) ([]types.ID, error) {
				return store.CompletedRideIDs(ctx, r.UserID)
			},
		})
		if err != nil {
			s.log.Error("charge ride", zap.String("ride_id", string(r.ID)), zap.Int("amount", amount), zap.Error(err))
			return fmt.Errorf("charge: %w", err)
		}

		evaluation := cmd.Evaluation
		r.Evaluation = &evaluation
		r.UpdatedAt = at
		result = EvaluateResult{Fare: amount, CompletedAt: at}
		tr = Transition{Ride: *r, Status: StatusCompleted, Trigger: TriggerPassenger, At: at}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Notify(ctx, tr)
	return &result, nil
}

type CancelCommand struct {
	UserID types.ID
	RideID types.ID
}

// Cancel ends a non-terminal ride. A coupon bound to it stays consumed.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	var tr Transition
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		store := s.store.WithTx(tx)
		r, err := store.GetForUpdate(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		if r.UserID != cmd.UserID {
			return ErrRideNotFound
		}
		cur, err := store.CurrentStatus(ctx, r.ID)
		if err != nil {
			return err
		}
		if !CanTransition(cur, StatusCanceled) {
			return ErrInvalidTransition
		}
		at := s.now()
		if err := store.AppendStatus(ctx, &StatusEvent{
			ID: types.NewID(), RideID: r.ID, Status: StatusCanceled, CreatedAt: at,
		}); err != nil {
			return fmt.Errorf("append status: %w", err)
		}
		tr = Transition{Ride: *r, Status: StatusCanceled, Trigger: TriggerPassenger, At: at}
		return nil
	})
	if err != nil {
		return err
	}
	s.Notify(ctx, tr)
	return nil
}

// Notify records metrics and publishes a committed transition.
func (s *Service) Notify(ctx context.Context, tr Transition) {
	observability.RideTransitions.WithLabelValues(string(tr.Status), tr.Trigger).Inc()
	s.events.RideStatusChanged(ctx, events.RideStatusChanged{
		RideID:  tr.Ride.ID,
		UserID:  tr.Ride.UserID,
		ChairID: tr.ChairID,
		Status:  string(tr.Status),
		Trigger: tr.Trigger,
		At:      tr.At,
	})
}

// README: Owner service; registration, chair list with odometer and the sales report.
package owner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"isuride/internal/types"
)

var (
	ErrNameTaken     = types.NewError(types.ErrConflict, "owner name already registered")
	ErrMissingName   = types.NewError(types.ErrValidation, "name is required")
	ErrInvalidRange  = types.NewError(types.ErrValidation, "since must not be after until")
	ErrChairNotFound = types.NewError(types.ErrNotFound, "chair not found")
)

// Pricer prices a completed ride for sales; coupons are not subtracted.
type Pricer interface {
	Undiscounted(pickup, destination types.Coordinate) int
}

type Service struct {
	store  *Store
	prices Pricer
	now    func() time.Time
}

func NewService(store *Store, prices Pricer) *Service {
	return &Service{store: store, prices: prices, now: types.Now}
}

func (s *Service) Register(ctx context.Context, name string) (*Owner, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrMissingName
	}
	o := &Owner{
		ID:                 types.NewID(),
		Name:               name,
		AccessToken:        types.RandomToken(32),
		ChairRegisterToken: types.RandomToken(32),
		CreatedAt:          s.now(),
	}
	if err := s.store.Insert(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) Chairs(ctx context.Context, ownerID types.ID) ([]ChairSummary, error) {
	chairs, err := s.store.Chairs(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chairs: %w", err)
	}
	return chairs, nil
}

func (s *Service) ChairDetail(ctx context.Context, ownerID, chairID types.ID) (*ChairSummary, error) {
	chairs, err := s.Chairs(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range chairs {
		if chairs[i].ID == chairID {
			return &chairs[i], nil
		}
	}
	return nil, ErrChairNotFound
}

// Sales reports list-price revenue per chair and per model. A zero Since means
// the epoch and a zero Until means now. Every owned chair and model appears,
// with zero sales when it had no ride in range.
func (s *Service) Sales(ctx context.Context, ownerID types.ID, rng SalesRange) (*Sales, error) {
	since, until := rng.Since, rng.Until
	if since.IsZero() {
		since = time.UnixMilli(0)
	}
	if until.IsZero() {
		until = s.now()
	}
	if since.After(until) {
		return nil, ErrInvalidRange
	}

	chairs, err := s.store.Chairs(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chairs: %w", err)
	}
	// Ranges arrive at millisecond precision; include the whole last millisecond.
	rides, err := s.store.CompletedRides(ctx, ownerID, since, until.Add(time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("list completed rides: %w", err)
	}

	perChair := make(map[types.ID]int, len(chairs))
	for _, r := range rides {
		perChair[r.ChairID] += s.prices.Undiscounted(r.Pickup, r.Destination)
	}

	out := &Sales{Chairs: make([]ChairSales, 0, len(chairs)), Models: []ModelSales{}}
	perModel := map[string]int{}
	for _, c := range chairs {
		amount := perChair[c.ID]
		out.Chairs = append(out.Chairs, ChairSales{ID: c.ID, Name: c.Name, Sales: amount})
		perModel[c.Model] += amount
		out.Total += amount
	}
	for model, amount := range perModel {
		out.Models = append(out.Models, ModelSales{Model: model, Sales: amount})
	}
	sort.Slice(out.Models, func(i, j int) bool { return out.Models[i].Model < out.Models[j].Model })
	return out, nil
}

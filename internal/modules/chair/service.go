// README: Chair service; registration under an owner and the activity flag.
package chair

import (
	"context"
	"fmt"
	"strings"
	"time"

	"isuride/internal/types"
)

var (
	ErrInvalidRegisterToken = types.NewError(types.ErrUnauthorized, "invalid chair_register_token")
	ErrMissingFields        = types.NewError(types.ErrValidation, "name, model and chair_register_token are required")
	ErrChairNotFound        = types.NewError(types.ErrNotFound, "chair not found")
)

type Service struct {
	store *Store
	now   func() time.Time
}

func NewService(store *Store) *Service {
	return &Service{store: store, now: types.Now}
}

type RegisterCommand struct {
	Name          string
	Model         string
	RegisterToken string
}

// Register creates an inactive chair for the owner holding RegisterToken.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Chair, error) {
	if strings.TrimSpace(cmd.Name) == "" || strings.TrimSpace(cmd.Model) == "" || cmd.RegisterToken == "" {
		return nil, ErrMissingFields
	}
	ownerID, err := s.store.OwnerByRegisterToken(ctx, cmd.RegisterToken)
	if err != nil {
		return nil, err
	}
	c := &Chair{
		ID:          types.NewID(),
		OwnerID:     ownerID,
		Name:        cmd.Name,
		Model:       cmd.Model,
		AccessToken: types.RandomToken(32),
		CreatedAt:   s.now(),
	}
	if err := s.store.Insert(ctx, c); err != nil {
		return nil, fmt.Errorf("insert chair: %w", err)
	}
	return c, nil
}

// SetActivity records the chair's availability flag. Dispatch does not read it.
func (s *Service) SetActivity(ctx context.Context, chairID types.ID, active bool) error {
	return s.store.SetActive(ctx, chairID, active)
}

func (s *Service) Get(ctx context.Context, chairID types.ID) (*Chair, error) {
	return s.store.Get(ctx, chairID)
}

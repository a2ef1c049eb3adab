// README: Session service; resolves access tokens through the Redis cache, falling back to Postgres.
package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"isuride/internal/types"
)

var ErrInvalidToken = types.NewError(types.ErrUnauthorized, "invalid access token")

type Service struct {
	store *Store
	cache *Cache
	log   *zap.Logger
}

// NewService builds the resolver; cache may be nil.
func NewService(store *Store, cache *Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, cache: cache, log: log}
}

// Authenticate resolves token for role. Cache failures degrade to a database
// lookup.
func (s *Service) Authenticate(ctx context.Context, role Role, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if s.cache != nil {
		id, err := s.cache.Get(ctx, role, token)
		if err != nil {
			s.log.Warn("session cache read", zap.String("role", string(role)), zap.Error(err))
		} else if id != "" {
			return &Principal{Role: role, ID: id}, nil
		}
	}

	id, err := s.store.Lookup(ctx, role, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	p := &Principal{Role: role, ID: id}
	if s.cache != nil {
		if err := s.cache.Set(ctx, *p, token); err != nil {
			s.log.Warn("session cache write", zap.String("role", string(role)), zap.Error(err))
		}
	}
	return p, nil
}

// Flush drops cached sessions; tokens from a reinitialized database must not
// resolve.
func (s *Service) Flush(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Flush(ctx)
}

// Package preference answers whether a role should be notified of an event kind.
package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-market-notify/internal/domain"
)

const cacheNamespace = "pref"

type PreferenceStore interface {
	Get(ctx context.Context, kind domain.EventKind, role domain.Role) (*domain.Preference, error)
	Put(ctx context.Context, p *domain.Preference) error
	List(ctx context.Context) ([]domain.Preference, error)
}

// Cache is optional; a nil Cache sends every lookup to the store.
type Cache interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, namespace, key string) error
}

// Service is the preference gate. Pairs without a stored preference are enabled.
type Service struct {
	store PreferenceStore
	cache Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewService(store PreferenceStore, cache Cache, ttl time.Duration) *Service {
	return &Service{store: store, cache: cache, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func cacheKey(kind domain.EventKind, role domain.Role) string {
	return string(kind) + ":" + string(role)
}

// ShouldNotify reads through the cache. Cache failures are logged and bypassed;
// store failures are returned.
func (s *Service) ShouldNotify(ctx context.Context, kind domain.EventKind, role domain.Role) (bool, error) {
	key := cacheKey(kind, role)
	if s.cache != nil {
		v, found, err := s.cache.Get(ctx, cacheNamespace, key)
		switch {
		case err != nil:
			slog.Warn("preference cache read failed", "key", key, "err", err)
		case found:
			return v == "1", nil
		}
	}

	enabled := true
	p, err := s.store.Get(ctx, kind, role)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("preference %s: %w", key, err)
	default:
		enabled = p.Enabled
	}

	if s.cache != nil {
		v := "0"
		if enabled {
			v = "1"
		}
		if err := s.cache.Set(ctx, cacheNamespace, key, v, s.ttl); err != nil {
			slog.Warn("preference cache write failed", "key", key, "err", err)
		}
	}
	return enabled, nil
}

// Set stores the preference and evicts its cache entry.
func (s *Service) Set(ctx context.Context, p domain.Preference) (*domain.Preference, error) {
	if !validKind(p.EventKind) {
		return nil, fmt.Errorf("event kind %q: %w", p.EventKind, domain.ErrBadRequest)
	}
	if !p.Role.Valid() {
		return nil, fmt.Errorf("role %q: %w", p.Role, domain.ErrBadRequest)
	}
	p.UpdatedAt = s.now()
	if err := s.store.Put(ctx, &p); err != nil {
		return nil, fmt.Errorf("save preference: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheNamespace, cacheKey(p.EventKind, p.Role)); err != nil {
			slog.Warn("preference cache evict failed", "kind", p.EventKind, "role", p.Role, "err", err)
		}
	}
	return &p, nil
}

// List returns the effective preference of every (kind, role) pair, stored or default.
func (s *Service) List(ctx context.Context) ([]domain.Preference, error) {
	stored, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]domain.Preference, len(stored))
	for _, p := range stored {
		byKey[cacheKey(p.EventKind, p.Role)] = p
	}
	out := make([]domain.Preference, 0, len(domain.EventKinds)*len(domain.Roles))
	for _, kind := range domain.EventKinds {
		for _, role := range domain.Roles {
			if p, ok := byKey[cacheKey(kind, role)]; ok {
				out = append(out, p)
				continue
			}
			out = append(out, domain.Preference{EventKind: kind, Role: role, Enabled: true})
		}
	}
	return out, nil
}

func validKind(k domain.EventKind) bool {
	for _, kind := range domain.EventKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Package directory resolves stakeholder keys to deliverable push tokens.
package directory

import (
	"context"
	"fmt"

	"github.com/go-market-notify/internal/domain"
)

type UserStore interface {
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}

// DeviceStore returns the tokens of a user's enabled devices that have one.
type DeviceStore interface {
	DeliverableTokens(ctx context.Context, userID string) ([]string, error)
}

type AssignmentStore interface {
	ListActive(ctx context.Context, sellerID string) ([]domain.DeliveryAssignment, error)
}

type Service struct {
	users       UserStore
	devices     DeviceStore
	assignments AssignmentStore
}

func NewService(users UserStore, devices DeviceStore, assignments AssignmentStore) *Service {
	return &Service{users: users, devices: devices, assignments: assignments}
}

// AdminTokens returns the tokens of every enabled admin except exclude.
func (s *Service) AdminTokens(ctx context.Context, exclude string) ([]string, error) {
	admins, err := s.users.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	keys := make([]string, 0, len(admins))
	for _, u := range admins {
		if u.UserID != exclude {
			keys = append(keys, u.UserID)
		}
	}
	return s.UserTokens(ctx, keys)
}

// UserTokens returns the distinct deliverable tokens of the given users.
func (s *Service) UserTokens(ctx context.Context, keys []string) ([]string, error) {
	seen := make(map[string]struct{})
	var tokens []string
	for _, key := range unique(keys) {
		userTokens, err := s.devices.DeliverableTokens(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("devices of %s: %w", key, err)
		}
		for _, t := range userTokens {
			if _, dup := seen[t]; dup || t == "" {
				continue
			}
			seen[t] = struct{}{}
			tokens = append(tokens, t)
		}
	}
	return tokens, nil
}

// ActiveDeliveryAgents returns the ids of the agents currently working for seller, minus exclude.
func (s *Service) ActiveDeliveryAgents(ctx context.Context, seller, exclude string) ([]string, error) {
	assignments, err := s.assignments.ListActive(ctx, seller)
	if err != nil {
		return nil, fmt.Errorf("delivery agents of %s: %w", seller, err)
	}
	agents := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if a.AgentID != exclude {
			agents = append(agents, a.AgentID)
		}
	}
	return unique(agents), nil
}

func unique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

package dispatch

import (
	"context"

	"github.com/go-market-notify/internal/domain"
)

// Transport delivers one message to a set of device tokens.
type Transport interface {
	Send(ctx context.Context, tokens []string, msg domain.Message) error
}

// TokenDirectory resolves stakeholders to device tokens.
type TokenDirectory interface {
	AdminTokens(ctx context.Context, exclude string) ([]string, error)
	UserTokens(ctx context.Context, keys []string) ([]string, error)
	ActiveDeliveryAgents(ctx context.Context, seller, exclude string) ([]string, error)
}

// PreferenceGate decides whether a role is notified of an event kind.
type PreferenceGate interface {
	ShouldNotify(ctx context.Context, kind domain.EventKind, role domain.Role) (bool, error)
}

// TemplateResolver returns the first template of chain that exists, interpolated.
type TemplateResolver interface {
	Resolve(ctx context.Context, locale string, chain []string, placeholders map[string]string) (domain.Message, error)
}

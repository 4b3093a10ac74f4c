// Package dispatch fans one domain event out to every stakeholder group as independent,
// preference-gated, template-resolved push deliveries.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-market-notify/internal/domain"
	"github.com/go-market-notify/internal/pkg/id"
)

const defaultTimeout = 30 * time.Second

type Status string

const (
	StatusDelivered Status = "delivered"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// BranchResult is the outcome of one role's delivery attempt.
type BranchResult struct {
	Role       domain.Role `json:"role"`
	Status     Status      `json:"status"`
	Recipients []string    `json:"recipients,omitempty"`
	Deliveries int         `json:"deliveries"`
	Tokens     int         `json:"tokens"`
	Reason     string      `json:"reason,omitempty"`
	Error      string      `json:"error,omitempty"`
	Err        error       `json:"-"`
}

// Run tracks the branches started for one event. Inspecting it is optional.
type Run struct {
	ID        string           `json:"id"`
	Kind      domain.EventKind `json:"kind"`
	StartedAt time.Time        `json:"started_at"`

	done    chan struct{}
	results []BranchResult
}

// Done is closed once every branch has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until every branch has finished and returns their results in role order.
func (r *Run) Wait() []BranchResult {
	<-r.done
	return r.results
}

// delivery is one Transport call: a set of recipients sharing one interpolated message.
// When resolve is set the recipients are looked up at send time; a partial lookup still sends
// to the recipients it found.
type delivery struct {
	recipients   []string
	placeholders map[string]string
	resolve      func(ctx context.Context) ([]string, error)
	tokens       func(ctx context.Context, recipients []string) ([]string, error)
}

type branch struct {
	role       domain.Role
	chain      []string
	deliveries []delivery
}

func (b branch) recipients() []string {
	var out []string
	for _, d := range b.deliveries {
		out = append(out, d.recipients...)
	}
	return out
}

type Dispatcher struct {
	transport Transport
	directory TokenDirectory
	prefs     PreferenceGate
	templates TemplateResolver
	timeout   time.Duration
}

// NewDispatcher wires the collaborators. timeout bounds every run; zero means 30s.
func NewDispatcher(transport Transport, directory TokenDirectory, prefs PreferenceGate, templates TemplateResolver, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{
		transport: transport,
		directory: directory,
		prefs:     prefs,
		templates: templates,
		timeout:   timeout,
	}
}

// Dispatch starts every branch for ev concurrently and returns without waiting.
// Branches keep running when ctx is cancelled; only the dispatch timeout stops them.
// Branch failures are logged and reported on the Run, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.DomainEvent) *Run {
	run := &Run{
		ID:        id.New(),
		Kind:      ev.Kind,
		StartedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
	eventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	branches := d.plan(ev)
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	results := make([]BranchResult, len(branches))
	var wg sync.WaitGroup
	for i, b := range branches {
		i, b := i, b
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.runBranch(runCtx, run.ID, ev, b)
		}()
	}

	go func() {
		wg.Wait()
		cancel()
		run.results = results
		close(run.done)
		slog.Info("dispatch finished",
			"dispatch_id", run.ID,
			"kind", ev.Kind,
			"branches", len(results),
			"elapsed", time.Since(run.StartedAt),
		)
	}()
	return run
}

// DispatchAndWait is Dispatch followed by Wait.
func (d *Dispatcher) DispatchAndWait(ctx context.Context, ev domain.DomainEvent) []BranchResult {
	return d.Dispatch(ctx, ev).Wait()
}

// plan picks the candidate roles of ev and the deliveries of each.
// The acting user is removed from every recipient set, whatever the role.
func (d *Dispatcher) plan(ev domain.DomainEvent) []branch {
	acting := ev.ActingUserID
	sellers := sellerKeys(ev)
	routes := Routes[ev.Kind]

	var out []branch
	for _, role := range domain.Roles {
		route, ok := routes[role]
		if !ok {
			continue
		}
		b := branch{role: role, chain: route.Expand(ev)}
		base := ev.Placeholders()

		switch role {
		case domain.RoleAdmin:
			b.deliveries = []delivery{{
				placeholders: base,
				tokens: func(ctx context.Context, _ []string) ([]string, error) {
					return d.directory.AdminTokens(ctx, acting)
				},
			}}

		case domain.RoleBuyer:
			if ev.BuyerKey == "" || ev.BuyerKey == acting {
				continue
			}
			b.deliveries = []delivery{d.batch([]string{ev.BuyerKey}, base)}

		case domain.RoleSeller:
			keys := without(sellers, acting)
			if len(keys) == 0 {
				continue
			}
			if ev.Kind == domain.KindPurchase && len(ev.Items) > 0 {
				b.deliveries = d.perSellerPurchase(ev, keys, base)
			} else {
				b.deliveries = []delivery{d.batch(keys, base)}
			}

		case domain.RoleDelivery:
			if ev.Kind == domain.KindSubStepActivation {
				// Agents are looked up per seller, including an acting seller's own agents.
				if len(sellers) == 0 {
					continue
				}
				b.deliveries = []delivery{{
					placeholders: base,
					resolve: func(ctx context.Context) ([]string, error) {
						return d.sellerAgents(ctx, sellers, acting)
					},
					tokens: d.directory.UserTokens,
				}}
				break
			}
			keys := without(unique(ev.DeliveryKeys), acting)
			if len(keys) == 0 {
				continue
			}
			b.deliveries = []delivery{d.batch(keys, base)}
		}
		out = append(out, b)
	}
	return out
}

func (d *Dispatcher) batch(keys []string, placeholders map[string]string) delivery {
	return delivery{
		recipients:   keys,
		placeholders: placeholders,
		tokens:       d.directory.UserTokens,
	}
}

// sellerAgents merges the active delivery agents of every seller. An agent working for
// several sellers appears once. Failed lookups are joined into the error.
func (d *Dispatcher) sellerAgents(ctx context.Context, sellers []string, exclude string) ([]string, error) {
	var agents []string
	var errs []error
	for _, seller := range sellers {
		ids, err := d.directory.ActiveDeliveryAgents(ctx, seller, exclude)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		agents = append(agents, ids...)
	}
	return without(unique(agents), exclude), errors.Join(errs...)
}

// perSellerPurchase sends one push per seller listing only that seller's items.
func (d *Dispatcher) perSellerPurchase(ev domain.DomainEvent, sellers []string, base map[string]string) []delivery {
	names := make(map[string][]string)
	for _, it := range ev.Items {
		names[it.SellerKey] = append(names[it.SellerKey], it.Name)
	}
	out := make([]delivery, 0, len(sellers))
	for _, seller := range sellers {
		ph := make(map[string]string, len(base))
		for k, v := range base {
			ph[k] = v
		}
		if items := names[seller]; len(items) > 0 {
			ph["itemName"] = strings.Join(items, ", ")
		}
		out = append(out, d.batch([]string{seller}, ph))
	}
	return out
}

func (d *Dispatcher) runBranch(ctx context.Context, runID string, ev domain.DomainEvent, b branch) (res BranchResult) {
	start := time.Now()
	res = BranchResult{Role: b.role, Recipients: b.recipients()}
	log := slog.With("dispatch_id", runID, "kind", ev.Kind, "role", b.role)

	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailed
			res.Err = fmt.Errorf("panic: %v", r)
		}
		if res.Err != nil {
			res.Error = res.Err.Error()
			log.Error("dispatch branch failed", "err", res.Err, "deliveries", res.Deliveries)
		} else {
			log.Info("dispatch branch done", "status", res.Status, "reason", res.Reason, "tokens", res.Tokens)
		}
		branchesTotal.WithLabelValues(string(ev.Kind), string(b.role), string(res.Status)).Inc()
		branchDuration.WithLabelValues(string(ev.Kind), string(b.role)).Observe(time.Since(start).Seconds())
	}()

	allowed, err := d.prefs.ShouldNotify(ctx, ev.Kind, b.role)
	if err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("preference check: %w", err)
		return res
	}
	if !allowed {
		res.Status = StatusSkipped
		res.Reason = "disabled by preference"
		return res
	}

	var errs []error
	for _, dl := range b.deliveries {
		msg, err := d.templates.Resolve(ctx, ev.Locale, b.chain, dl.placeholders)
		if err != nil {
			errs = append(errs, fmt.Errorf("template: %w", err))
			continue
		}
		recipients := dl.recipients
		if dl.resolve != nil {
			recipients, err = dl.resolve(ctx)
			res.Recipients = append(res.Recipients, recipients...)
			if err != nil {
				errs = append(errs, fmt.Errorf("recipients: %w", err))
			}
			if len(recipients) == 0 {
				continue
			}
		}
		tokens, err := dl.tokens(ctx, recipients)
		if err != nil {
			errs = append(errs, fmt.Errorf("tokens: %w", err))
			continue
		}
		if len(tokens) == 0 {
			continue
		}
		if err := d.transport.Send(ctx, tokens, msg); err != nil {
			sendsTotal.WithLabelValues(string(b.role), "error").Inc()
			errs = append(errs, fmt.Errorf("send: %w", err))
			continue
		}
		sendsTotal.WithLabelValues(string(b.role), "ok").Inc()
		res.Deliveries++
		res.Tokens += len(tokens)
	}

	switch {
	case len(errs) > 0:
		res.Status = StatusFailed
		res.Err = errors.Join(errs...)
	case res.Deliveries > 0:
		res.Status = StatusDelivered
	default:
		res.Status = StatusSkipped
		res.Reason = "no device tokens"
	}
	return res
}

// sellerKeys merges SellerKeys with the sellers of purchased items, first occurrence first.
func sellerKeys(ev domain.DomainEvent) []string {
	keys := append([]string(nil), ev.SellerKeys...)
	for _, it := range ev.Items {
		keys = append(keys, it.SellerKey)
	}
	return unique(keys)
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

func without(keys []string, exclude string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != exclude {
			out = append(out, k)
		}
	}
	return out
}

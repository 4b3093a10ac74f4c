package dispatch

import (
	"strings"

	"github.com/go-market-notify/internal/domain"
)

// Route is the template fallback chain of one (kind, role) pair, most specific first.
// Paths may reference {stepId} and {subStep}.
type Route struct {
	Chain []string
}

func stepChain(specific string, role domain.Role) Route {
	return Route{Chain: []string{
		"steps." + specific + "." + string(role),
		"steps.general_update." + string(role),
	}}
}

// Routes lists who is told about what. A role without a route for a kind is never a candidate.
var Routes = map[domain.EventKind]map[domain.Role]Route{
	domain.KindPurchase: {
		domain.RoleAdmin:  {Chain: []string{"purchase.admin"}},
		domain.RoleBuyer:  {Chain: []string{"purchase.buyer"}},
		domain.RoleSeller: {Chain: []string{"purchase.seller"}},
	},
	domain.KindStepActivation: {
		domain.RoleAdmin:    stepChain("{stepId}", domain.RoleAdmin),
		domain.RoleBuyer:    stepChain("{stepId}", domain.RoleBuyer),
		domain.RoleSeller:   stepChain("{stepId}", domain.RoleSeller),
		domain.RoleDelivery: stepChain("{stepId}", domain.RoleDelivery),
	},
	domain.KindSubStepActivation: {
		domain.RoleAdmin:    stepChain("{subStep}", domain.RoleAdmin),
		domain.RoleBuyer:    stepChain("{subStep}", domain.RoleBuyer),
		domain.RoleSeller:   stepChain("{subStep}", domain.RoleSeller),
		domain.RoleDelivery: stepChain("{subStep}", domain.RoleDelivery),
	},
	domain.KindItemCreated: {
		domain.RoleAdmin: {Chain: []string{"items.created.admin"}},
	},
	domain.KindItemUpdated: {
		domain.RoleAdmin: {Chain: []string{"items.updated.admin"}},
	},
	domain.KindItemAccepted: {
		domain.RoleAdmin:  {Chain: []string{"items.accepted.admin"}},
		domain.RoleSeller: {Chain: []string{"items.accepted.seller"}},
	},
}

// Expand fills {stepId} and {subStep} from ev. Paths whose placeholders are empty are dropped.
func (r Route) Expand(ev domain.DomainEvent) []string {
	values := map[string]string{
		"{stepId}":  ev.StepID,
		"{subStep}": string(ev.SubStep),
	}
	out := make([]string, 0, len(r.Chain))
	for _, p := range r.Chain {
		ok := true
		for token, v := range values {
			if !strings.Contains(p, token) {
				continue
			}
			if v == "" || strings.Contains(v, ".") {
				ok = false
				break
			}
			p = strings.ReplaceAll(p, token, v)
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}

package domain

// Role is a stakeholder group a domain event can be fanned out to.
// The same names are used as user roles in the users table and in JWT claims.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleBuyer    Role = "buyer"
	RoleSeller   Role = "seller"
	RoleDelivery Role = "delivery"
)

// Roles lists every stakeholder role in fan-out order.
var Roles = []Role{RoleAdmin, RoleBuyer, RoleSeller, RoleDelivery}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

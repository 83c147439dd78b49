// Package authz decides whether a principal may see a gated area.
package authz

import (
	"strings"

	"storefront/internal/domain"
)

const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonForbidden       = "forbidden"

	LoginPath = "/login"
	HomePath  = "/"
)

// Principal is the verified identity of a caller. The zero value is anonymous.
type Principal struct {
	CustomerID string        `json:"customerId,omitempty"`
	Email      string        `json:"email,omitempty"`
	Roles      []domain.Role `json:"roles,omitempty"`
}

func (p Principal) Authenticated() bool { return p.CustomerID != "" }

// HasRole reports an exact role match. Admin does not imply other staff roles.
func (p Principal) HasRole(role domain.Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole is true when the principal holds at least one of roles.
func (p Principal) HasAnyRole(roles ...domain.Role) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// Requirement describes a gate. Roles is any-of; empty Roles with
// Authenticated=false means public.
type Requirement struct {
	Authenticated bool
	Roles         []domain.Role
}

var Public = Requirement{}

func Authenticated() Requirement { return Requirement{Authenticated: true} }

func AnyRole(roles ...domain.Role) Requirement {
	return Requirement{Authenticated: true, Roles: roles}
}

// Decision is either allowed, or denied with a reason and where to send the user.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func Check(p Principal, req Requirement) Decision {
	if !req.Authenticated && len(req.Roles) == 0 {
		return Decision{Allowed: true}
	}
	if !p.Authenticated() {
		return Decision{Reason: ReasonUnauthenticated, Redirect: LoginPath}
	}
	if len(req.Roles) > 0 && !p.HasAnyRole(req.Roles...) {
		return Decision{Reason: ReasonForbidden, Redirect: HomePath}
	}
	return Decision{Allowed: true}
}

type route struct {
	prefix string
	req    Requirement
}

var routes = []route{
	{prefix: "/checkout", req: Authenticated()},
	{prefix: "/profile", req: Authenticated()},
	{prefix: "/orders", req: Authenticated()},
	{prefix: "/admin", req: AnyRole(domain.RoleAdmin)},
	{prefix: "/customer-service", req: AnyRole(domain.RoleCustomerService)},
	{prefix: "/cashier", req: AnyRole(domain.RoleCashier)},
}

// RequirementFor returns the gate for a client route. Unknown routes are public.
func RequirementFor(path string) Requirement {
	path = normalize(path)
	for _, r := range routes {
		if path == r.prefix || strings.HasPrefix(path, r.prefix+"/") {
			return r.req
		}
	}
	return Public
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storefront/internal/domain"
)

func TestCheck(t *testing.T) {
	anon := Principal{}
	customer := Principal{CustomerID: "c1", Roles: []domain.Role{domain.RoleCustomer}}
	admin := Principal{CustomerID: "a1", Roles: []domain.Role{domain.RoleAdmin}}
	rep := Principal{CustomerID: "r1", Roles: []domain.Role{domain.RoleCustomerService}}

	cases := []struct {
		name string
		p    Principal
		req  Requirement
		want Decision
	}{
		{"public anon", anon, Public, Decision{Allowed: true}},
		{"auth anon", anon, Authenticated(), Decision{Reason: ReasonUnauthenticated, Redirect: LoginPath}},
		{"auth customer", customer, Authenticated(), Decision{Allowed: true}},
		{"role anon", anon, AnyRole(domain.RoleAdmin), Decision{Reason: ReasonUnauthenticated, Redirect: LoginPath}},
		{"role mismatch", customer, AnyRole(domain.RoleAdmin), Decision{Reason: ReasonForbidden, Redirect: HomePath}},
		{"role match", admin, AnyRole(domain.RoleAdmin), Decision{Allowed: true}},
		{"any of", rep, AnyRole(domain.RoleAdmin, domain.RoleCustomerService), Decision{Allowed: true}},
		{"admin is not cashier", admin, AnyRole(domain.RoleCashier), Decision{Reason: ReasonForbidden, Redirect: HomePath}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Check(tc.p, tc.req))
		})
	}
}

func TestRequirementFor(t *testing.T) {
	assert.Equal(t, Public, RequirementFor("/"))
	assert.Equal(t, Public, RequirementFor("/products"))
	assert.Equal(t, Public, RequirementFor("/product/123"))
	assert.Equal(t, Public, RequirementFor("/cart"))
	assert.Equal(t, Public, RequirementFor("/login"))
	assert.Equal(t, Authenticated(), RequirementFor("/checkout"))
	assert.Equal(t, Authenticated(), RequirementFor("/orders/"))
	assert.Equal(t, Authenticated(), RequirementFor("/orders/abc"))
	assert.Equal(t, Authenticated(), RequirementFor("profile?tab=address"))
	assert.Equal(t, AnyRole(domain.RoleAdmin), RequirementFor("/admin"))
	assert.Equal(t, AnyRole(domain.RoleAdmin), RequirementFor("/admin/products/new"))
	assert.Equal(t, AnyRole(domain.RoleCustomerService), RequirementFor("/customer-service/chats"))
	assert.Equal(t, AnyRole(domain.RoleCashier), RequirementFor("/cashier/pos"))
	assert.Equal(t, Public, RequirementFor("/administrator"))
}

package domain

import "time"

// Role is a server-verified claim granting access beyond plain authentication.
type Role string

const (
	RoleCustomer        Role = "customer"
	RoleAdmin           Role = "admin"
	RoleCustomerService Role = "customer_service"
	RoleCashier         Role = "cashier"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleCustomerService, RoleCashier:
		return true
	}
	return false
}

// Customer is an authenticated account. Staff accounts are customers with extra roles.
type Customer struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Address stores shipping fields returned to clients.
type Address struct {
	FullName   string `json:"fullName" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required,len=2"`
	Phone      string `json:"phone,omitempty"`
}

type CustomerProfile struct {
	CustomerID string    `json:"customerId"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Address    *Address  `json:"address,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

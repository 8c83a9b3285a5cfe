package enums

import "strings"

// Role is the caller role asserted by the upstream gateway.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	// RoleSystem marks changes made by background jobs.
	RoleSystem   Role = "system"
)

// ParseRole normalizes raw header input; unknown values fall back to customer.
func ParseRole(value string) Role {
	if strings.EqualFold(strings.TrimSpace(value), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleCustomer
}

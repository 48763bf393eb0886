package model

// RoleCode identifies the capability level of an authenticated principal.
type RoleCode string

const (
	RoleAdmin    RoleCode = "admin"
	RoleStaff    RoleCode = "staff"
	RoleCustomer RoleCode = "customer"
)

// Valid reports whether r is one of the known roles.
func (r RoleCode) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

// IsPrivileged is true for roles whose ledger changes skip approval.
func (r RoleCode) IsPrivileged() bool {
	return r == RoleAdmin
}

// IsStaff is true for back-office roles (admin included).
func (r RoleCode) IsStaff() bool {
	return r == RoleAdmin || r == RoleStaff
}

package service

import (
	"fmt"

	"go-stock-ledger/internal/model"

	"github.com/google/uuid"
)

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID   string
	Role model.RoleCode
}

func (a Actor) IsAdmin() bool {
	return a.Role.IsPrivileged()
}

func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

func (a Actor) IsCustomer() bool {
	return a.Role == model.RoleCustomer
}

// UserID parses the actor id; it is uuid.Nil for system actors.
func (a Actor) UserID() uuid.UUID {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// requireStaff centralizes the back-office capability check.
func requireStaff(a Actor, entity string, id fmt.Stringer, action string) error {
	if a.IsStaff() {
		return nil
	}
	return forbidden(entity, id, "role %q may not %s", a.Role, action)
}

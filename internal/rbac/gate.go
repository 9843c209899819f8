package rbac

import (
	rbacerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/rbac/errors"

	"github.com/google/uuid"
)

// Caller is the resolved identity behind a request.
type Caller struct {
	UserID     string
	EmployeeID uuid.UUID
	CompanyID  uuid.UUID
	Role       Role
}

func (c Caller) Authenticated() bool {
	return c.EmployeeID != uuid.Nil && c.CompanyID != uuid.Nil && c.Role.Valid()
}

func (c Caller) IsPrivileged() bool {
	return c.Authenticated() && c.Role.IsPrivileged()
}

func (c Caller) IsAdmin() bool {
	return c.Authenticated() && c.Role.IsAdmin()
}

// CanAccessOwned reports whether the caller may act on a resource owned by ownerID.
func CanAccessOwned(c Caller, ownerID uuid.UUID) bool {
	if !c.Authenticated() {
		return false
	}
	return c.EmployeeID == ownerID || c.Role.IsPrivileged()
}

func RequireAuthenticated(c Caller) error {
	if !c.Authenticated() {
		return rbacerrors.ErrUnauthenticated
	}
	return nil
}

func RequirePrivileged(c Caller) error {
	if err := RequireAuthenticated(c); err != nil {
		return err
	}
	if !c.Role.IsPrivileged() {
		return rbacerrors.ErrPrivilegedOnly
	}
	return nil
}

func RequireAdmin(c Caller) error {
	if err := RequireAuthenticated(c); err != nil {
		return err
	}
	if !c.Role.IsAdmin() {
		return rbacerrors.ErrAdminOnly
	}
	return nil
}

func RequireOwnerOrPrivileged(c Caller, ownerID uuid.UUID) error {
	if err := RequireAuthenticated(c); err != nil {
		return err
	}
	if !CanAccessOwned(c, ownerID) {
		return rbacerrors.ErrNotOwner
	}
	return nil
}

// ScopeEmployee returns the employee id a listing must be restricted to.
// Non-privileged callers always get their own id, whatever they asked for.
func ScopeEmployee(c Caller, requested *uuid.UUID) *uuid.UUID {
	if !c.Role.IsPrivileged() {
		own := c.EmployeeID
		return &own
	}
	return requested
}

package rbac

import (
	"strings"

	rbacerrors "github.com/kenjisciometa/shift-management-app-sub004/internal/rbac/errors"
)

// Role is the only authorization axis. The set is closed.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Roles lists every valid role, most powerful first.
var Roles = []Role{RoleOwner, RoleAdmin, RoleManager, RoleEmployee}

func ParseRole(v string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(v)))
	if !r.Valid() {
		return "", rbacerrors.ErrInvalidRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// IsPrivileged reports owner, admin or manager.
func (r Role) IsPrivileged() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager:
		return true
	}
	return false
}

// IsAdmin reports owner or admin. Every admin role is also privileged.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleOwner, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

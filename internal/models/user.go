package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Roles a user can hold within their organization.
const (
	RoleEmployee = "employee" // May submit cases and see their own
	RoleOperator = "operator" // Hotline console: full case access within the org
	RoleAdmin    = "admin"    // Operator plus user management
)

// User represents a person belonging to exactly one organization.
// Users are tenant-scoped: queries without a matching tenant context see
// no user rows at all.
type User struct {
	UserID uuid.UUID // UUIDv7
	OrgID  uuid.UUID // FK to organizations
	Email  string    // Unique within the organization
	Name   string

	// PasswordHash is a bcrypt hash. Empty for SSO-only accounts.
	PasswordHash string

	Roles []string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time // Soft delete for deactivation tracking
}

// HasRole reports whether the user holds the given role. Admins implicitly
// hold the operator role.
func (u *User) HasRole(role string) bool {
	if role == RoleOperator && slices.Contains(u.Roles, RoleAdmin) {
		return true
	}
	return slices.Contains(u.Roles, role)
}

// IsDeactivated returns true if the user has been soft-deleted.
func (u *User) IsDeactivated() bool {
	return u.DeletedAt != nil
}

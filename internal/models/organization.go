package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant in the system. It is the isolation
// boundary unit: every other entity hangs off an organization and is subject
// to row-level tenant filtering. The organization table itself is exempt
// from that filtering because authentication has to resolve the organization
// before any tenant context exists.
type Organization struct {
	OrgID uuid.UUID // UUIDv7
	Slug  string    // URL-safe identifier used by the public report portal
	Name  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Package tenant carries the caller's organization identity through every
// data-access call. The Postgres store translates this context into
// transaction-local session settings consumed by row-level security
// policies; the in-memory store applies the same visibility rules directly.
//
// There is deliberately no way to read rows without either an organization
// in the context or the system capability: an absent context fails closed.
package tenant

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	orgContextKey contextKey = iota
	systemContextKey
)

// WithOrganization returns a context scoped to the given organization.
// All tenant-scoped store operations using this context see only rows
// belonging to that organization.
func WithOrganization(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, orgContextKey, orgID)
}

// FromContext returns the organization the context is scoped to, if any.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	orgID, ok := ctx.Value(orgContextKey).(uuid.UUID)
	return orgID, ok
}

// AsSystem returns a context carrying the system capability, which disables
// tenant filtering for the stores that honour it. It exists for the few
// operations that legitimately run before a tenant is known: session lookup
// during authentication, and administrative bootstrap. Handlers must never
// put it on a request path that serves tenant data directly.
func AsSystem(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemContextKey, true)
}

// IsSystem reports whether the context carries the system capability.
func IsSystem(ctx context.Context) bool {
	ok, _ := ctx.Value(systemContextKey).(bool)
	return ok
}

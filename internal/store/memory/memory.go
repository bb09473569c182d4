// Package memory provides in-memory store implementations for testing.
// Data is lost on restart.
//
// The stores emulate the tenant isolation semantics of the PostgreSQL
// backend: rows are visible only when the context carries a matching
// organization or the system capability, and a context with neither sees
// nothing at all (fail closed). This keeps unit tests honest about context
// plumbing without a database.
package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

// visible reports whether a row belonging to orgID may be seen or mutated
// under the given context, applying the same rule as the row-level security
// policies.
func visible(ctx context.Context, orgID uuid.UUID) bool {
	if tenant.IsSystem(ctx) {
		return true
	}
	current, ok := tenant.FromContext(ctx)
	return ok && current == orgID
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

// Session settings consumed by the row-level security policies. Both are set
// with set_config(..., true) so they are transaction-local: pooled
// connections never carry one request's tenant into another request.
const (
	settingCurrentOrganization = "app.current_organization"
	settingBypassRLS           = "app.bypass_rls"
)

// beginTenantTx opens a transaction and applies the caller's tenant context
// as transaction-local session settings.
//
// Three cases:
//   - system capability: app.bypass_rls = 'true', policies let every row through
//   - organization in context: app.current_organization = <org uuid>
//   - neither: nothing is set, and the policies match zero rows (fail closed)
//
// The fail-closed case is not an error here. Callers that get unexpectedly
// empty results should treat that as a context-setup defect, per the
// isolation contract.
func beginTenantTx(ctx context.Context, pool *pgxpool.Pool) (pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if tenant.IsSystem(ctx) {
		if _, err := tx.Exec(ctx, `SELECT set_config($1, 'true', true)`, settingBypassRLS); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("failed to set bypass flag: %w", err)
		}
		return tx, nil
	}

	if orgID, ok := tenant.FromContext(ctx); ok {
		if _, err := tx.Exec(ctx, `SELECT set_config($1, $2, true)`, settingCurrentOrganization, orgID.String()); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("failed to set organization context: %w", err)
		}
	}

	return tx, nil
}

// withTenantTx runs fn inside a tenant-scoped transaction and commits it if
// fn returns nil. All tenant-scoped store methods go through here so that no
// query can reach a tenant table without the session settings applied.
func withTenantTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := beginTenantTx(ctx, pool)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

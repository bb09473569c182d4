package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
//
// Organizations are exempt from the tenant isolation policies, so this store
// queries the pool directly rather than going through withTenantTx. Access
// control for this table is the caller's responsibility.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

// NewOrganizationStore creates a new PostgreSQL-backed organization store.
// It shares the connection pool with the other stores.
func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{
		pool: pool,
	}
}

// Create creates a new organization in the database.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (
			organization_id, slug, name, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	_, err := s.pool.Exec(ctx, query,
		org.OrgID,
		org.Slug,
		org.Name,
		org.CreatedAt,
		org.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrOrganizationAlreadyExists
		}
		return fmt.Errorf("failed to create organization: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("organization_id", org.OrgID.String()).
		Str("slug", org.Slug).
		Msg("Created organization")

	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT organization_id, slug, name, created_at, updated_at
		FROM organizations
		WHERE organization_id = $1
	`

	var org models.Organization
	err := s.pool.QueryRow(ctx, query, orgID).Scan(
		&org.OrgID,
		&org.Slug,
		&org.Name,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// GetBySlug retrieves an organization by its URL slug. Used by the public
// report portal to resolve a tenant before any tenant context exists.
func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `
		SELECT organization_id, slug, name, created_at, updated_at
		FROM organizations
		WHERE slug = $1
	`

	var org models.Organization
	err := s.pool.QueryRow(ctx, query, slug).Scan(
		&org.OrgID,
		&org.Slug,
		&org.Name,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization by slug: %w", err)
	}

	return &org, nil
}

// Update updates an existing organization.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now()

	query := `
		UPDATE organizations SET
			slug = $2,
			name = $3,
			updated_at = $4
		WHERE organization_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		org.OrgID,
		org.Slug,
		org.Name,
		org.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update organization: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Debug().
		Str("organization_id", org.OrgID.String()).
		Msg("Updated organization")

	return nil
}

// Delete deletes an organization by ID.
// This will cascade-delete all of its users, sessions, cases and events via
// FK constraints.
func (s *OrganizationStore) Delete(ctx context.Context, orgID uuid.UUID) error {
	query := `DELETE FROM organizations WHERE organization_id = $1`

	result, err := s.pool.Exec(ctx, query, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Info().
		Str("organization_id", orgID.String()).
		Msg("Deleted organization (and cascade-deleted all tenant data)")

	return nil
}

// List returns all organizations, newest first.
func (s *OrganizationStore) List(ctx context.Context) ([]*models.Organization, error) {
	query := `
		SELECT organization_id, slug, name, created_at, updated_at
		FROM organizations
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		var org models.Organization
		err := rows.Scan(
			&org.OrgID,
			&org.Slug,
			&org.Name,
			&org.CreatedAt,
			&org.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, &org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", err)
	}

	return orgs, nil
}

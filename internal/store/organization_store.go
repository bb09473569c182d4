package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

// OrganizationStore manages tenant root entities. Organizations are NOT
// subject to tenant filtering - they are the tenant - so callers are
// responsible for their own access checks on this interface.
type OrganizationStore interface {
	Create(ctx context.Context, org *models.Organization) error
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	Delete(ctx context.Context, orgID uuid.UUID) error
	List(ctx context.Context) ([]*models.Organization, error)
}

package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

// UserStore manages users within an organization. All operations are
// tenant-scoped: without a matching tenant context they match no rows.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error

	// Delete removes the user row entirely. Columns elsewhere that referenced
	// the user as an actor are nulled out, never cascaded.
	Delete(ctx context.Context, userID uuid.UUID) error

	List(ctx context.Context) ([]*models.User, error)
}

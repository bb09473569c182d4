package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

// ActivityStore persists audit events. Append-only and tenant-scoped.
type ActivityStore interface {
	Record(ctx context.Context, event *models.ActivityEvent) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]*models.ActivityEvent, error)
	ListRecent(ctx context.Context, limit int) ([]*models.ActivityEvent, error)
}

package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

// FileStore manages case attachment metadata. The file bytes themselves live
// in a storage.Adapter backend; this store is tenant-scoped like any other.
type FileStore interface {
	Create(ctx context.Context, file *models.CaseFile) error
	Get(ctx context.Context, fileID uuid.UUID) (*models.CaseFile, error)
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*models.CaseFile, error)
	Delete(ctx context.Context, fileID uuid.UUID) error
}

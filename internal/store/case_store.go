package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

// CaseFilter narrows a case listing. Zero values mean "no filter".
type CaseFilter struct {
	PipelineStage string
	Outcome       models.Outcome
	Source        models.CaseSource
	IncludeMerged bool
	Limit         int
	Offset        int
}

// CaseStore manages case records. All operations are tenant-scoped.
//
// The mutation methods are deliberately narrow - stage, outcome and merge
// are separate operations with their own actor/timestamp columns - so the
// schema records who did what without the store needing a generic update.
type CaseStore interface {
	Create(ctx context.Context, c *models.Case) error
	Get(ctx context.Context, caseID uuid.UUID) (*models.Case, error)
	GetByReference(ctx context.Context, referenceCode string) (*models.Case, error)
	GetByAccessCodeHash(ctx context.Context, hash string) (*models.Case, error)
	List(ctx context.Context, filter CaseFilter) ([]*models.Case, error)
	ListByReporter(ctx context.Context, reporterUserID uuid.UUID) ([]*models.Case, error)

	// UpdateStage moves the case to a new pipeline stage, recording actor and
	// time. Legality of the transition is the case service's concern.
	UpdateStage(ctx context.Context, caseID uuid.UUID, stage string, actorID *uuid.UUID, at time.Time) error

	// RecordOutcome stores the adjudicated outcome with actor, time and notes.
	RecordOutcome(ctx context.Context, caseID uuid.UUID, outcome models.Outcome, actorID *uuid.UUID, notes string, at time.Time) error

	// Merge marks the case as superseded by another case. Cycle prevention is
	// the case service's concern; the schema tolerates any pointer.
	Merge(ctx context.Context, caseID, intoCaseID uuid.UUID, actorID *uuid.UUID, reason string, at time.Time) error

	// Delete removes a case row. Cases are normally retained indefinitely;
	// this exists for data-subject erasure requests. Merge pointers at other
	// cases that referenced this one are nulled out.
	Delete(ctx context.Context, caseID uuid.UUID) error
}

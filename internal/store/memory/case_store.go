package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// CaseStore implements store.CaseStore using in-memory storage with the same
// tenant visibility and referential cleanup semantics as the PostgreSQL
// backend.
type CaseStore struct {
	mu sync.RWMutex

	cases map[uuid.UUID]*models.Case

	// onDelete callbacks emulate the schema's ON DELETE behaviour on rows
	// referencing a deleted case, as UserStore does for deleted users.
	onDelete []func(caseID uuid.UUID)
}

// NewCaseStore creates a new in-memory case store.
func NewCaseStore() *CaseStore {
	return &CaseStore{
		cases: make(map[uuid.UUID]*models.Case),
	}
}

// OnDelete registers a callback invoked when a case row is deleted. The
// memory file store registers here to mirror the CASCADE constraint on
// case_files.case_id.
func (s *CaseStore) OnDelete(fn func(caseID uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = append(s.onDelete, fn)
}

// ClearActorRefs nulls out actor references held by a deleted user,
// mirroring the ON DELETE SET NULL constraints on the cases table.
// Registered with UserStore.OnDelete.
func (s *CaseStore) ClearActorRefs(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.cases {
		if c.ReporterUserID != nil && *c.ReporterUserID == userID {
			c.ReporterUserID = nil
		}
		if c.StageChangedByID != nil && *c.StageChangedByID == userID {
			c.StageChangedByID = nil
		}
		if c.OutcomeByID != nil && *c.OutcomeByID == userID {
			c.OutcomeByID = nil
		}
		if c.MergedByID != nil && *c.MergedByID == userID {
			c.MergedByID = nil
		}
	}
}

// Create inserts a new case.
func (s *CaseStore) Create(ctx context.Context, c *models.Case) error {
	if !visible(ctx, c.OrgID) {
		return store.ErrCaseNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cases[c.CaseID]; exists {
		return store.ErrCaseAlreadyExists
	}
	for _, existing := range s.cases {
		if existing.OrgID == c.OrgID && existing.ReferenceCode == c.ReferenceCode {
			return store.ErrCaseAlreadyExists
		}
	}

	clone := *c
	s.cases[c.CaseID] = &clone

	return nil
}

// Get retrieves a case by ID.
func (s *CaseStore) Get(ctx context.Context, caseID uuid.UUID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.cases[caseID]
	if !exists || !visible(ctx, c.OrgID) {
		return nil, store.ErrCaseNotFound
	}

	clone := *c
	return &clone, nil
}

// GetByReference retrieves a case by its human-facing reference code.
func (s *CaseStore) GetByReference(ctx context.Context, referenceCode string) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.cases {
		if c.ReferenceCode == referenceCode && visible(ctx, c.OrgID) {
			clone := *c
			return &clone, nil
		}
	}

	return nil, store.ErrCaseNotFound
}

// GetByAccessCodeHash retrieves a case by the hash of its anonymous access
// code.
func (s *CaseStore) GetByAccessCodeHash(ctx context.Context, hash string) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if hash == "" {
		return nil, store.ErrCaseNotFound
	}

	for _, c := range s.cases {
		if c.AccessCodeHash == hash && visible(ctx, c.OrgID) {
			clone := *c
			return &clone, nil
		}
	}

	return nil, store.ErrCaseNotFound
}

// List returns cases matching the filter, newest first.
func (s *CaseStore) List(ctx context.Context, filter store.CaseFilter) ([]*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cases []*models.Case
	for _, c := range s.cases {
		if !visible(ctx, c.OrgID) {
			continue
		}
		if filter.PipelineStage != "" && c.PipelineStage != filter.PipelineStage {
			continue
		}
		if filter.Outcome != "" && c.Outcome != filter.Outcome {
			continue
		}
		if filter.Source != "" && c.Source != filter.Source {
			continue
		}
		if !filter.IncludeMerged && c.IsMerged {
			continue
		}
		clone := *c
		cases = append(cases, &clone)
	}

	sort.Slice(cases, func(i, j int) bool {
		return cases[i].CreatedAt.After(cases[j].CreatedAt)
	})

	offset := filter.Offset
	if offset > len(cases) {
		offset = len(cases)
	}
	cases = cases[offset:]

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(cases) > limit {
		cases = cases[:limit]
	}

	return cases, nil
}

// ListByReporter returns the cases a user reported, newest first.
func (s *CaseStore) ListByReporter(ctx context.Context, reporterUserID uuid.UUID) ([]*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cases []*models.Case
	for _, c := range s.cases {
		if c.ReporterUserID != nil && *c.ReporterUserID == reporterUserID && visible(ctx, c.OrgID) {
			clone := *c
			cases = append(cases, &clone)
		}
	}

	sort.Slice(cases, func(i, j int) bool {
		return cases[i].CreatedAt.After(cases[j].CreatedAt)
	})

	return cases, nil
}

// UpdateStage moves a case to a new pipeline stage.
func (s *CaseStore) UpdateStage(ctx context.Context, caseID uuid.UUID, stage string, actorID *uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.cases[caseID]
	if !exists || !visible(ctx, c.OrgID) {
		return store.ErrCaseNotFound
	}

	c.PipelineStage = stage
	c.StageChangedAt = at
	c.StageChangedByID = actorID
	c.UpdatedAt = at

	return nil
}

// RecordOutcome stores the adjudicated outcome.
func (s *CaseStore) RecordOutcome(ctx context.Context, caseID uuid.UUID, outcome models.Outcome, actorID *uuid.UUID, notes string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.cases[caseID]
	if !exists || !visible(ctx, c.OrgID) {
		return store.ErrCaseNotFound
	}

	c.Outcome = outcome
	c.OutcomeAt = &at
	c.OutcomeByID = actorID
	c.OutcomeNotes = notes
	c.UpdatedAt = at

	return nil
}

// Merge marks a case as superseded by another case.
func (s *CaseStore) Merge(ctx context.Context, caseID, intoCaseID uuid.UUID, actorID *uuid.UUID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.cases[caseID]
	if !exists || !visible(ctx, c.OrgID) {
		return store.ErrCaseNotFound
	}
	if _, exists := s.cases[intoCaseID]; !exists {
		return store.ErrCaseNotFound
	}

	c.IsMerged = true
	c.MergedIntoCaseID = &intoCaseID
	c.MergedByID = actorID
	c.MergedAt = &at
	c.MergeReason = reason
	c.UpdatedAt = at

	return nil
}

// Delete removes a case row, nulls merge pointers that referenced it
// (ON DELETE SET NULL on merged_into_case_id) and fires the registered
// cleanup callbacks.
func (s *CaseStore) Delete(ctx context.Context, caseID uuid.UUID) error {
	s.mu.Lock()

	c, exists := s.cases[caseID]
	if !exists || !visible(ctx, c.OrgID) {
		s.mu.Unlock()
		return store.ErrCaseNotFound
	}

	delete(s.cases, caseID)

	for _, other := range s.cases {
		if other.MergedIntoCaseID != nil && *other.MergedIntoCaseID == caseID {
			other.MergedIntoCaseID = nil
		}
	}

	callbacks := make([]func(uuid.UUID), len(s.onDelete))
	copy(callbacks, s.onDelete)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(caseID)
	}

	return nil
}

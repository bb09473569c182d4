// Package cases implements the case workflow on top of the store layer:
// intake with reference and access codes, pipeline stage transitions,
// outcome adjudication, merging and file attachments. The schema records
// state without judging it; the legality rules live here.
package cases

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/activity"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/storage"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/telemetry"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

var (
	// ErrCaseMerged is returned when mutating a case that has been merged
	// into another case. The canonical record lives at the merge target.
	ErrCaseMerged = errors.New("case has been merged")

	// ErrIllegalTransition is returned when the target stage is not reachable
	// from the case's current stage in its pipeline.
	ErrIllegalTransition = errors.New("illegal stage transition")

	// ErrUnknownPipeline is returned when a case references a pipeline the
	// current configuration does not define.
	ErrUnknownPipeline = errors.New("unknown pipeline")

	// ErrInvalidOutcome is returned for outcome values outside the enum.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrOutcomeRecorded is returned when recording an outcome on a case that
	// already has one.
	ErrOutcomeRecorded = errors.New("outcome already recorded")

	// ErrMergeCycle is returned when a merge would make a case transitively
	// point back at itself.
	ErrMergeCycle = errors.New("merge would create a cycle")

	// ErrMergeTargetMerged is returned when merging into a case that is
	// itself merged. Callers should merge into the canonical case instead.
	ErrMergeTargetMerged = errors.New("merge target is itself merged")
)

// maxMergeChain bounds the merge pointer walk. Chains longer than this only
// arise from data corruption.
const maxMergeChain = 64

// Service implements the case workflow.
type Service struct {
	cases     store.CaseStore
	files     store.FileStore
	blobs     storage.Adapter
	recorder  *activity.Recorder
	pipelines *PipelineConfig
}

// NewService creates the case service.
func NewService(cases store.CaseStore, files store.FileStore, blobs storage.Adapter, recorder *activity.Recorder, pipelines *PipelineConfig) *Service {
	return &Service{
		cases:     cases,
		files:     files,
		blobs:     blobs,
		recorder:  recorder,
		pipelines: pipelines,
	}
}

// OpenCaseInput carries intake parameters for a new case.
type OpenCaseInput struct {
	Source         models.CaseSource
	Subject        string
	Details        string
	ReporterUserID *uuid.UUID // nil for anonymous public reports
	PipelineID     string     // empty selects the default pipeline
	ClientIP       string
}

// OpenCase creates a case in the initial stage of its pipeline. For
// anonymous public reports it returns a one-time access code; only its
// SHA-256 digest is stored, so the code cannot be recovered later.
func (s *Service) OpenCase(ctx context.Context, in OpenCaseInput) (*models.Case, string, error) {
	if strings.TrimSpace(in.Subject) == "" {
		return nil, "", fmt.Errorf("subject is required")
	}

	pipeline, err := s.pipeline(in.PipelineID)
	if err != nil {
		return nil, "", err
	}

	orgID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, "", fmt.Errorf("no organization in context")
	}

	var accessCode string
	var accessCodeHash string
	if in.Source == models.CaseSourcePublic && in.ReporterUserID == nil {
		accessCode, err = newAccessCode()
		if err != nil {
			return nil, "", err
		}
		accessCodeHash = HashAccessCode(accessCode)
	}

	now := time.Now().UTC()

	c := &models.Case{
		CaseID:         uuid.Must(uuid.NewV7()),
		OrgID:          orgID,
		Source:         in.Source,
		ReporterUserID: in.ReporterUserID,
		Subject:        in.Subject,
		Details:        in.Details,
		AccessCodeHash: accessCodeHash,
		PipelineID:     pipeline.ID,
		PipelineStage:  pipeline.InitialStage(),
		StageChangedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Reference codes are short, so regenerate on the rare collision.
	for attempt := 0; ; attempt++ {
		c.ReferenceCode, err = newReferenceCode()
		if err != nil {
			return nil, "", err
		}

		err = s.cases.Create(ctx, c)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrCaseAlreadyExists) && attempt < 3 {
			continue
		}
		return nil, "", err
	}

	s.recorder.Record(ctx, activity.Event{
		ActorUserID: in.ReporterUserID,
		Action:      "case.opened",
		EntityType:  "case",
		EntityID:    c.CaseID,
		Details: map[string]any{
			"reference_code": c.ReferenceCode,
			"source":         string(in.Source),
			"pipeline_id":    pipeline.ID,
		},
		ClientIP: in.ClientIP,
	})

	telemetry.GetMetrics().CasesOpenedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", string(in.Source))))
	if in.Source == models.CaseSourcePublic {
		telemetry.GetMetrics().PublicReportsTotal.Add(ctx, 1)
	}

	log.Ctx(ctx).Debug().
		Str("case_id", c.CaseID.String()).
		Str("reference_code", c.ReferenceCode).
		Str("source", string(in.Source)).
		Msg("case opened")

	return c, accessCode, nil
}

// GetCase retrieves a case by ID.
func (s *Service) GetCase(ctx context.Context, caseID uuid.UUID) (*models.Case, error) {
	return s.cases.Get(ctx, caseID)
}

// GetCaseByReference retrieves a case by its human-facing reference code.
func (s *Service) GetCaseByReference(ctx context.Context, referenceCode string) (*models.Case, error) {
	return s.cases.GetByReference(ctx, referenceCode)
}

// ListCases lists cases matching the filter in the tenant context.
func (s *Service) ListCases(ctx context.Context, filter store.CaseFilter) ([]*models.Case, error) {
	return s.cases.List(ctx, filter)
}

// ListReporterCases lists the cases a reporter opened themselves.
func (s *Service) ListReporterCases(ctx context.Context, reporterUserID uuid.UUID) ([]*models.Case, error) {
	return s.cases.ListByReporter(ctx, reporterUserID)
}

// StatusByAccessCode resolves an anonymous reporter's case from the access
// code handed out at submission.
func (s *Service) StatusByAccessCode(ctx context.Context, accessCode string) (*models.Case, error) {
	telemetry.GetMetrics().AccessCodeLookupsTotal.Add(ctx, 1)
	return s.cases.GetByAccessCodeHash(ctx, HashAccessCode(accessCode))
}

// TransitionStage moves a case to another stage of its pipeline. Merged
// cases are frozen; the target stage must be legal per the pipeline.
func (s *Service) TransitionStage(ctx context.Context, caseID uuid.UUID, toStage string, actorID *uuid.UUID) (*models.Case, error) {
	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if c.IsMerged {
		return nil, ErrCaseMerged
	}

	pipeline, ok := s.pipelines.Lookup(c.PipelineID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, c.PipelineID)
	}

	if !pipeline.CanTransition(c.PipelineStage, toStage) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, c.PipelineStage, toStage)
	}

	now := time.Now().UTC()
	if err := s.cases.UpdateStage(ctx, caseID, toStage, actorID, now); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, activity.Event{
		ActorUserID: actorID,
		Action:      "case.stage_changed",
		EntityType:  "case",
		EntityID:    caseID,
		Details: map[string]any{
			"from": c.PipelineStage,
			"to":   toStage,
		},
	})

	telemetry.GetMetrics().StageTransitionsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("to_stage", toStage)))

	return s.cases.Get(ctx, caseID)
}

// RecordOutcome records the adjudicated outcome on a case. Outcomes are
// written once; amending a decision means erasing and re-adjudicating
// through a privileged path, not silently overwriting the audit trail.
func (s *Service) RecordOutcome(ctx context.Context, caseID uuid.UUID, outcome models.Outcome, notes string, actorID *uuid.UUID) (*models.Case, error) {
	if !outcome.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOutcome, outcome)
	}

	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if c.IsMerged {
		return nil, ErrCaseMerged
	}
	if c.HasOutcome() {
		return nil, ErrOutcomeRecorded
	}

	now := time.Now().UTC()
	if err := s.cases.RecordOutcome(ctx, caseID, outcome, actorID, notes, now); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, activity.Event{
		ActorUserID: actorID,
		Action:      "case.outcome_recorded",
		EntityType:  "case",
		EntityID:    caseID,
		Details: map[string]any{
			"outcome": string(outcome),
		},
	})

	telemetry.GetMetrics().OutcomesRecordedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", string(outcome))))

	return s.cases.Get(ctx, caseID)
}

// MergeCases marks caseID as superseded by intoCaseID. The target must be
// an unmerged case in the same organization, and the merge must not create
// a cycle through existing merge pointers.
func (s *Service) MergeCases(ctx context.Context, caseID, intoCaseID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Case, error) {
	if caseID == intoCaseID {
		return nil, ErrMergeCycle
	}

	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.IsMerged {
		return nil, ErrCaseMerged
	}

	target, err := s.cases.Get(ctx, intoCaseID)
	if err != nil {
		return nil, err
	}
	if target.IsMerged {
		return nil, ErrMergeTargetMerged
	}

	// Deleted merge targets null out pointers mid-chain, so a stale pointer
	// can still exist. Walk from the target to be sure we never loop back.
	if err := s.checkMergeCycle(ctx, caseID, target); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.cases.Merge(ctx, caseID, intoCaseID, actorID, reason, now); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, activity.Event{
		ActorUserID: actorID,
		Action:      "case.merged",
		EntityType:  "case",
		EntityID:    caseID,
		Details: map[string]any{
			"merged_into": intoCaseID.String(),
			"reason":      reason,
		},
	})

	telemetry.GetMetrics().CasesMergedTotal.Add(ctx, 1)

	return s.cases.Get(ctx, caseID)
}

func (s *Service) checkMergeCycle(ctx context.Context, caseID uuid.UUID, target *models.Case) error {
	current := target
	for i := 0; i < maxMergeChain; i++ {
		if current.CaseID == caseID {
			return ErrMergeCycle
		}
		if current.MergedIntoCaseID == nil {
			return nil
		}

		next, err := s.cases.Get(ctx, *current.MergedIntoCaseID)
		if err != nil {
			if errors.Is(err, store.ErrCaseNotFound) {
				return nil
			}
			return err
		}
		current = next
	}

	return fmt.Errorf("merge chain exceeds %d links", maxMergeChain)
}

// AttachFile stores an attachment's bytes in the storage backend and its
// metadata in the file store.
func (s *Service) AttachFile(ctx context.Context, caseID uuid.UUID, name, contentType string, r io.Reader, actorID *uuid.UUID) (*models.CaseFile, error) {
	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}

	fileID := uuid.Must(uuid.NewV7())
	key := fmt.Sprintf("%s/%s/%s", c.OrgID, c.CaseID, fileID)

	size, err := s.blobs.Put(ctx, key, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	file := &models.CaseFile{
		FileID:       fileID,
		OrgID:        c.OrgID,
		CaseID:       c.CaseID,
		Name:         name,
		ContentType:  contentType,
		SizeBytes:    size,
		StorageKey:   key,
		UploadedByID: actorID,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.files.Create(ctx, file); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			log.Ctx(ctx).Error().Err(delErr).Str("key", key).Msg("failed to clean up orphaned blob")
		}
		return nil, err
	}

	s.recorder.Record(ctx, activity.Event{
		ActorUserID: actorID,
		Action:      "case.file_attached",
		EntityType:  "case",
		EntityID:    caseID,
		Details: map[string]any{
			"file_id": fileID.String(),
			"name":    name,
			"size":    size,
		},
	})

	m := telemetry.GetMetrics()
	m.FilesUploadedTotal.Add(ctx, 1)
	m.FileUploadBytes.Add(ctx, size)

	return file, nil
}

// ListFiles returns attachment metadata for a case.
func (s *Service) ListFiles(ctx context.Context, caseID uuid.UUID) ([]*models.CaseFile, error) {
	if _, err := s.cases.Get(ctx, caseID); err != nil {
		return nil, err
	}
	return s.files.ListByCase(ctx, caseID)
}

// OpenFile returns attachment metadata and a reader over its bytes. The
// caller must close the reader.
func (s *Service) OpenFile(ctx context.Context, fileID uuid.UUID) (*models.CaseFile, io.ReadCloser, error) {
	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	r, err := s.blobs.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment: %w", err)
	}

	return file, r, nil
}

// EraseCase removes a case, its attachment blobs and metadata. This exists
// for data-subject erasure requests; normal workflow never deletes cases.
func (s *Service) EraseCase(ctx context.Context, caseID uuid.UUID, actorID *uuid.UUID) error {
	files, err := s.files.ListByCase(ctx, caseID)
	if err != nil {
		return err
	}

	if err := s.cases.Delete(ctx, caseID); err != nil {
		return err
	}

	for _, file := range files {
		if err := s.blobs.Delete(ctx, file.StorageKey); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("key", file.StorageKey).Msg("failed to delete attachment blob")
		}
	}

	s.recorder.Record(ctx, activity.Event{
		ActorUserID: actorID,
		Action:      "case.erased",
		EntityType:  "case",
		EntityID:    caseID,
	})

	telemetry.GetMetrics().CasesDeletedTotal.Add(ctx, 1)

	return nil
}

func (s *Service) pipeline(id string) (*Pipeline, error) {
	if id == "" {
		return s.pipelines.Default(), nil
	}
	pipeline, ok := s.pipelines.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, id)
	}
	return pipeline, nil
}

// HashAccessCode returns the SHA-256 hex digest stored in place of an
// anonymous access code.
func HashAccessCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// newReferenceCode generates a short human-quotable case identifier.
func newReferenceCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reference code: %w", err)
	}
	return "HC-" + base58.Encode(buf), nil
}

// newAccessCode generates the secret handed to an anonymous reporter.
func newAccessCode() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate access code: %w", err)
	}
	return base58.Encode(buf), nil
}

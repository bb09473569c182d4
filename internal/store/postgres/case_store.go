package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// CaseStore implements store.CaseStore using PostgreSQL. Every query runs in
// a tenant-scoped transaction; the row-level security policies guarantee that
// a case can never be read or mutated across tenants even if a handler mixes
// up IDs.
type CaseStore struct {
	pool *pgxpool.Pool
}

// NewCaseStore creates a new PostgreSQL-backed case store.
func NewCaseStore(pool *pgxpool.Pool) *CaseStore {
	return &CaseStore{
		pool: pool,
	}
}

const caseColumns = `
	case_id, organization_id, reference_code, access_code_hash,
	source, reporter_user_id, subject, details,
	pipeline_id, pipeline_stage, stage_changed_at, stage_changed_by_id,
	outcome, outcome_at, outcome_by_id, outcome_notes,
	is_merged, merged_into_case_id, merged_by_id, merged_at, merge_reason,
	created_at, updated_at
`

func scanCase(row pgx.Row) (*models.Case, error) {
	var c models.Case
	var accessCodeHash *string
	var stageChangedAt *time.Time
	var outcome *string
	err := row.Scan(
		&c.CaseID,
		&c.OrgID,
		&c.ReferenceCode,
		&accessCodeHash,
		&c.Source,
		&c.ReporterUserID,
		&c.Subject,
		&c.Details,
		&c.PipelineID,
		&c.PipelineStage,
		&stageChangedAt,
		&c.StageChangedByID,
		&outcome,
		&c.OutcomeAt,
		&c.OutcomeByID,
		&c.OutcomeNotes,
		&c.IsMerged,
		&c.MergedIntoCaseID,
		&c.MergedByID,
		&c.MergedAt,
		&c.MergeReason,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if accessCodeHash != nil {
		c.AccessCodeHash = *accessCodeHash
	}
	if stageChangedAt != nil {
		c.StageChangedAt = *stageChangedAt
	}
	if outcome != nil {
		c.Outcome = models.Outcome(*outcome)
	}
	return &c, nil
}

// Create inserts a new case row.
func (s *CaseStore) Create(ctx context.Context, c *models.Case) error {
	query := `
		INSERT INTO cases (` + caseColumns + `)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
		)
	`

	// NULL rather than empty string, the partial unique index only covers
	// rows that actually carry an access code.
	var accessCodeHash *string
	if c.AccessCodeHash != "" {
		accessCodeHash = &c.AccessCodeHash
	}
	var outcome *string
	if c.Outcome != "" {
		o := string(c.Outcome)
		outcome = &o
	}

	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			c.CaseID,
			c.OrgID,
			c.ReferenceCode,
			accessCodeHash,
			c.Source,
			c.ReporterUserID,
			c.Subject,
			c.Details,
			c.PipelineID,
			c.PipelineStage,
			c.StageChangedAt,
			c.StageChangedByID,
			outcome,
			c.OutcomeAt,
			c.OutcomeByID,
			c.OutcomeNotes,
			c.IsMerged,
			c.MergedIntoCaseID,
			c.MergedByID,
			c.MergedAt,
			c.MergeReason,
			c.CreatedAt,
			c.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrCaseAlreadyExists
		}
		return fmt.Errorf("failed to create case: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("case_id", c.CaseID.String()).
		Str("reference_code", c.ReferenceCode).
		Str("source", string(c.Source)).
		Msg("Created case")

	return nil
}

// Get retrieves a case by ID within the tenant context.
func (s *CaseStore) Get(ctx context.Context, caseID uuid.UUID) (*models.Case, error) {
	return s.getOne(ctx, `SELECT `+caseColumns+` FROM cases WHERE case_id = $1`, caseID)
}

// GetByReference retrieves a case by its human-facing reference code.
func (s *CaseStore) GetByReference(ctx context.Context, referenceCode string) (*models.Case, error) {
	return s.getOne(ctx, `SELECT `+caseColumns+` FROM cases WHERE reference_code = $1`, referenceCode)
}

// GetByAccessCodeHash retrieves a case by the hash of its anonymous access
// code. Used by the public report portal's status check.
func (s *CaseStore) GetByAccessCodeHash(ctx context.Context, hash string) (*models.Case, error) {
	return s.getOne(ctx, `SELECT `+caseColumns+` FROM cases WHERE access_code_hash = $1`, hash)
}

func (s *CaseStore) getOne(ctx context.Context, query string, arg any) (*models.Case, error) {
	var c *models.Case
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		c, err = scanCase(tx.QueryRow(ctx, query, arg))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	return c, nil
}

// List returns cases matching the filter, newest first.
func (s *CaseStore) List(ctx context.Context, filter store.CaseFilter) ([]*models.Case, error) {
	var (
		conds []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.PipelineStage != "" {
		conds = append(conds, "pipeline_stage = "+arg(filter.PipelineStage))
	}
	if filter.Outcome != "" {
		conds = append(conds, "outcome = "+arg(string(filter.Outcome)))
	}
	if filter.Source != "" {
		conds = append(conds, "source = "+arg(string(filter.Source)))
	}
	if !filter.IncludeMerged {
		conds = append(conds, "NOT is_merged")
	}

	query := `SELECT ` + caseColumns + ` FROM cases`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT " + arg(limit)
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	return s.list(ctx, query, args...)
}

// ListByReporter returns the cases a user reported, newest first. Backs the
// employee portal's "my cases" view.
func (s *CaseStore) ListByReporter(ctx context.Context, reporterUserID uuid.UUID) ([]*models.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE reporter_user_id = $1
		ORDER BY created_at DESC
	`
	return s.list(ctx, query, reporterUserID)
}

func (s *CaseStore) list(ctx context.Context, query string, args ...any) ([]*models.Case, error) {
	var cases []*models.Case
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCase(rows)
			if err != nil {
				return fmt.Errorf("failed to scan case: %w", err)
			}
			cases = append(cases, c)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}

	return cases, nil
}

// UpdateStage moves a case to a new pipeline stage, recording actor and time.
func (s *CaseStore) UpdateStage(ctx context.Context, caseID uuid.UUID, stage string, actorID *uuid.UUID, at time.Time) error {
	query := `
		UPDATE cases SET
			pipeline_stage = $2,
			stage_changed_at = $3,
			stage_changed_by_id = $4,
			updated_at = $3
		WHERE case_id = $1
	`

	return s.exec(ctx, query, caseID, stage, at, actorID)
}

// RecordOutcome stores the adjudicated outcome with actor, time and notes.
func (s *CaseStore) RecordOutcome(ctx context.Context, caseID uuid.UUID, outcome models.Outcome, actorID *uuid.UUID, notes string, at time.Time) error {
	query := `
		UPDATE cases SET
			outcome = $2,
			outcome_at = $3,
			outcome_by_id = $4,
			outcome_notes = $5,
			updated_at = $3
		WHERE case_id = $1
	`

	return s.exec(ctx, query, caseID, string(outcome), at, actorID, notes)
}

// Merge marks a case as superseded by another case.
func (s *CaseStore) Merge(ctx context.Context, caseID, intoCaseID uuid.UUID, actorID *uuid.UUID, reason string, at time.Time) error {
	query := `
		UPDATE cases SET
			is_merged = TRUE,
			merged_into_case_id = $2,
			merged_by_id = $3,
			merged_at = $4,
			merge_reason = $5,
			updated_at = $4
		WHERE case_id = $1
	`

	// A missing merge target trips the FK constraint, which mapPostgresError
	// reports as ErrCaseNotFound.
	if err := s.exec(ctx, query, caseID, intoCaseID, actorID, at, reason); err != nil {
		return err
	}

	log.Debug().
		Str("case_id", caseID.String()).
		Str("merged_into_case_id", intoCaseID.String()).
		Msg("Merged case")

	return nil
}

// Delete removes a case row. Other cases whose merge pointer referenced this
// one have the pointer nulled by ON DELETE SET NULL; attachments cascade.
func (s *CaseStore) Delete(ctx context.Context, caseID uuid.UUID) error {
	err := s.exec(ctx, `DELETE FROM cases WHERE case_id = $1`, caseID)
	if err != nil {
		return err
	}

	log.Info().
		Str("case_id", caseID.String()).
		Msg("Deleted case")

	return nil
}

func (s *CaseStore) exec(ctx context.Context, query string, args ...any) error {
	var affected int64
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = result.RowsAffected()
		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to update case: %w", mapPostgresError(err))
	}

	if affected == 0 {
		return store.ErrCaseNotFound
	}

	return nil
}

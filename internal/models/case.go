package models

import (
	"time"

	"github.com/google/uuid"
)

// CaseSource identifies which intake flow created a case.
type CaseSource string

const (
	CaseSourceEmployee CaseSource = "employee" // Employee self-service portal
	CaseSourceOperator CaseSource = "operator" // Entered by a hotline operator
	CaseSourcePublic   CaseSource = "public"   // Anonymous public report portal
)

// Outcome is the terminal adjudication result recorded on a case.
type Outcome string

const (
	OutcomeSubstantiated   Outcome = "SUBSTANTIATED"
	OutcomeUnsubstantiated Outcome = "UNSUBSTANTIATED"
	OutcomeInconclusive    Outcome = "INCONCLUSIVE"
	OutcomePolicyViolation Outcome = "POLICY_VIOLATION"
	OutcomeNoViolation     Outcome = "NO_VIOLATION"
)

// Valid reports whether o is one of the known adjudication outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSubstantiated, OutcomeUnsubstantiated, OutcomeInconclusive,
		OutcomePolicyViolation, OutcomeNoViolation:
		return true
	}
	return false
}

// Case is a business record moving through a multi-stage pipeline until it
// receives an outcome and/or is merged into another case. Rows persist
// indefinitely; merge and outcome are additive state, not deletions.
type Case struct {
	CaseID uuid.UUID // UUIDv7
	OrgID  uuid.UUID // FK to organizations

	// ReferenceCode is the human-facing identifier quoted in correspondence.
	ReferenceCode string
	// AccessCodeHash is the SHA-256 hex digest of the anonymous access code
	// handed to public reporters. Empty for cases from authenticated flows.
	AccessCodeHash string

	Source         CaseSource
	ReporterUserID *uuid.UUID // nil for anonymous reports; nulled if the user is deleted
	Subject        string
	Details        string

	// Pipeline position. Stage transitions record who moved the case and when;
	// legal stage sequences are enforced by the case service, not the schema.
	PipelineID       string
	PipelineStage    string
	StageChangedAt   time.Time
	StageChangedByID *uuid.UUID

	// Adjudication. Empty Outcome means the case has not been decided.
	Outcome      Outcome
	OutcomeAt    *time.Time
	OutcomeByID  *uuid.UUID
	OutcomeNotes string

	// Merge relation. A merged case's canonical data lives at the target of
	// MergedIntoCaseID. Deleting the target orphans the pointer (SET NULL)
	// rather than cascading.
	IsMerged         bool
	MergedIntoCaseID *uuid.UUID
	MergedByID       *uuid.UUID
	MergedAt         *time.Time
	MergeReason      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasOutcome returns true once an adjudication outcome has been recorded.
func (c *Case) HasOutcome() bool {
	return c.Outcome != ""
}

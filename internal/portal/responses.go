package portal

import (
	"time"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

type caseResponse struct {
	CaseID        string `json:"case_id"`
	ReferenceCode string `json:"reference_code"`
	Source        string `json:"source"`
	Subject       string `json:"subject"`
	Details       string `json:"details,omitempty"`

	PipelineID     string    `json:"pipeline_id"`
	PipelineStage  string    `json:"pipeline_stage"`
	StageChangedAt time.Time `json:"stage_changed_at"`

	Outcome      string     `json:"outcome,omitempty"`
	OutcomeAt    *time.Time `json:"outcome_at,omitempty"`
	OutcomeNotes string     `json:"outcome_notes,omitempty"`

	IsMerged         bool   `json:"is_merged"`
	MergedIntoCaseID string `json:"merged_into_case_id,omitempty"`
	MergeReason      string `json:"merge_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCaseResponse(c *models.Case) caseResponse {
	resp := caseResponse{
		CaseID:         c.CaseID.String(),
		ReferenceCode:  c.ReferenceCode,
		Source:         string(c.Source),
		Subject:        c.Subject,
		Details:        c.Details,
		PipelineID:     c.PipelineID,
		PipelineStage:  c.PipelineStage,
		StageChangedAt: c.StageChangedAt,
		Outcome:        string(c.Outcome),
		OutcomeAt:      c.OutcomeAt,
		OutcomeNotes:   c.OutcomeNotes,
		IsMerged:       c.IsMerged,
		MergeReason:    c.MergeReason,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.MergedIntoCaseID != nil {
		resp.MergedIntoCaseID = c.MergedIntoCaseID.String()
	}
	return resp
}

func toCaseResponses(cs []*models.Case) []caseResponse {
	out := make([]caseResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCaseResponse(c))
	}
	return out
}

type fileResponse struct {
	FileID      string    `json:"file_id"`
	CaseID      string    `json:"case_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

func toFileResponse(f *models.CaseFile) fileResponse {
	return fileResponse{
		FileID:      f.FileID.String(),
		CaseID:      f.CaseID.String(),
		Name:        f.Name,
		ContentType: f.ContentType,
		SizeBytes:   f.SizeBytes,
		CreatedAt:   f.CreatedAt,
	}
}

func toFileResponses(fs []*models.CaseFile) []fileResponse {
	out := make([]fileResponse, 0, len(fs))
	for _, f := range fs {
		out = append(out, toFileResponse(f))
	}
	return out
}

type eventResponse struct {
	EventID     string         `json:"event_id"`
	ActorUserID string         `json:"actor_user_id,omitempty"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toEventResponses(events []*models.ActivityEvent) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp := eventResponse{
			EventID:    e.EventID.String(),
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID.String(),
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		}
		if e.ActorUserID != nil {
			resp.ActorUserID = e.ActorUserID.String()
		}
		out = append(out, resp)
	}
	return out
}

func parseID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	return id, err == nil
}

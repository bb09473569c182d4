// Package activity records the audit trail. Every material action in the
// system (intake, stage changes, outcomes, merges, logins, file uploads)
// produces one event attributed to an actor, an entity and a tenant.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

// Event describes an auditable action. EventID, OrgID and CreatedAt are
// filled in by the recorder.
type Event struct {
	ActorUserID *uuid.UUID // nil for anonymous or system actions
	Action      string
	EntityType  string
	EntityID    uuid.UUID
	Details     map[string]any
	ClientIP    string
}

// Recorder writes audit events to the activity store. Recording is
// best-effort: a failed audit write is logged but never fails the action
// being audited.
type Recorder struct {
	activities store.ActivityStore
}

// NewRecorder creates an audit recorder backed by the given store.
func NewRecorder(activities store.ActivityStore) *Recorder {
	return &Recorder{activities: activities}
}

// Record persists an audit event in the tenant context of ctx.
func (r *Recorder) Record(ctx context.Context, event Event) {
	orgID, ok := tenant.FromContext(ctx)
	if !ok {
		log.Ctx(ctx).Warn().Str("action", event.Action).Msg("dropping audit event without tenant context")
		return
	}

	err := r.activities.Record(ctx, &models.ActivityEvent{
		EventID:     uuid.Must(uuid.NewV7()),
		OrgID:       orgID,
		ActorUserID: event.ActorUserID,
		Action:      event.Action,
		EntityType:  event.EntityType,
		EntityID:    event.EntityID,
		Details:     event.Details,
		ClientIP:    event.ClientIP,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("action", event.Action).Msg("failed to record audit event")
	}
}

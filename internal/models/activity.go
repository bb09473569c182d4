package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityEvent is an audit record of who did what, and when. Events are
// tenant-scoped and append-only; the actor reference is nulled if the user
// is later deleted, the event itself is kept.
type ActivityEvent struct {
	EventID     uuid.UUID // UUIDv7
	OrgID       uuid.UUID
	ActorUserID *uuid.UUID // nil for anonymous or system actions

	Action     string // e.g. "case.stage_changed"
	EntityType string // e.g. "case"
	EntityID   uuid.UUID

	Details  map[string]any // Free-form event payload, stored as JSONB
	ClientIP string

	CreatedAt time.Time
}

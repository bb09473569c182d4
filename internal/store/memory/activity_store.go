package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// ActivityStore implements store.ActivityStore using in-memory storage.
type ActivityStore struct {
	mu sync.RWMutex

	events []*models.ActivityEvent
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{}
}

// ClearActorRefs nulls the actor reference on events recorded by a deleted
// user, mirroring ON DELETE SET NULL. Registered with UserStore.OnDelete.
func (s *ActivityStore) ClearActorRefs(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range s.events {
		if event.ActorUserID != nil && *event.ActorUserID == userID {
			event.ActorUserID = nil
		}
	}
}

// Record appends an audit event.
func (s *ActivityStore) Record(ctx context.Context, event *models.ActivityEvent) error {
	if !visible(ctx, event.OrgID) {
		return store.ErrOrganizationNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *event
	s.events = append(s.events, &clone)

	return nil
}

// ListByEntity returns the newest events for one entity.
func (s *ActivityStore) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]*models.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*models.ActivityEvent
	for _, event := range s.events {
		if event.EntityType == entityType && event.EntityID == entityID && visible(ctx, event.OrgID) {
			clone := *event
			events = append(events, &clone)
		}
	}

	return newestFirst(events, limit), nil
}

// ListRecent returns the newest events in the tenant context.
func (s *ActivityStore) ListRecent(ctx context.Context, limit int) ([]*models.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*models.ActivityEvent
	for _, event := range s.events {
		if visible(ctx, event.OrgID) {
			clone := *event
			events = append(events, &clone)
		}
	}

	return newestFirst(events, limit), nil
}

func newestFirst(events []*models.ActivityEvent, limit int) []*models.ActivityEvent {
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})

	if limit <= 0 {
		limit = 100
	}
	if len(events) > limit {
		events = events[:limit]
	}

	return events
}

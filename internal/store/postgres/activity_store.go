package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

// ActivityStore implements store.ActivityStore using PostgreSQL. Events are
// append-only; there is no update or delete path.
type ActivityStore struct {
	pool *pgxpool.Pool
}

// NewActivityStore creates a new PostgreSQL-backed activity store.
func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{
		pool: pool,
	}
}

// Record appends an audit event.
func (s *ActivityStore) Record(ctx context.Context, event *models.ActivityEvent) error {
	query := `
		INSERT INTO activity_events (
			event_id, organization_id, actor_user_id,
			action, entity_type, entity_id,
			details, client_ip, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8::inet, $9
		)
	`

	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal event details: %w", err)
	}

	var clientIP any
	if event.ClientIP != "" {
		clientIP = event.ClientIP
	}

	err = withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			event.EventID,
			event.OrgID,
			event.ActorUserID,
			event.Action,
			event.EntityType,
			event.EntityID,
			detailsJSON,
			clientIP,
			event.CreatedAt,
		)
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to record activity event: %w", mapPostgresError(err))
	}

	return nil
}

const activityColumns = `
	event_id, organization_id, actor_user_id,
	action, entity_type, entity_id,
	details, client_ip, created_at
`

// ListByEntity returns the newest events for one entity, e.g. a case's
// timeline in the operator console.
func (s *ActivityStore) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]*models.ActivityEvent, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activity_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	return s.list(ctx, query, entityType, entityID, normalizeLimit(limit))
}

// ListRecent returns the newest events in the tenant context.
func (s *ActivityStore) ListRecent(ctx context.Context, limit int) ([]*models.ActivityEvent, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activity_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	return s.list(ctx, query, normalizeLimit(limit))
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

func (s *ActivityStore) list(ctx context.Context, query string, args ...any) ([]*models.ActivityEvent, error) {
	var events []*models.ActivityEvent
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var event models.ActivityEvent
			var detailsJSON []byte
			var clientIP *netip.Prefix
			err := rows.Scan(
				&event.EventID,
				&event.OrgID,
				&event.ActorUserID,
				&event.Action,
				&event.EntityType,
				&event.EntityID,
				&detailsJSON,
				&clientIP,
				&event.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to scan activity event: %w", err)
			}

			if len(detailsJSON) > 0 {
				if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
					return fmt.Errorf("failed to unmarshal event details: %w", err)
				}
			}
			if clientIP != nil {
				event.ClientIP = clientIP.Addr().String()
			}

			events = append(events, &event)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list activity events: %w", err)
	}

	return events, nil
}

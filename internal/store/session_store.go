package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

// SessionStore manages server-side sessions. Sessions are tenant-scoped;
// the one lookup that happens before a tenant is known (resolving a cookie)
// must run under the system capability.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
	UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteExpired(ctx context.Context) (int, error)
}

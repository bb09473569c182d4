package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// SessionStore implements store.SessionStore using PostgreSQL.
// Sessions are tenant-scoped; Get with a bare cookie (tenant unknown) must be
// called with the system capability on the context.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{
		pool: pool,
	}
}

// Create creates a new session in the database.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (
			session_id, organization_id, user_id,
			created_at, expires_at, last_used_at,
			user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8::inet
		)
	`

	// Convert empty IP address to nil for proper INET handling
	var ipAddress any
	if session.IPAddress != "" {
		ipAddress = session.IPAddress
	}

	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			session.SessionID,
			session.OrgID,
			session.UserID,
			session.CreatedAt,
			session.ExpiresAt,
			session.LastUsedAt,
			session.UserAgent,
			ipAddress,
		)
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to create session: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Str("user_id", session.UserID.String()).
		Msg("Created session")

	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	query := `
		SELECT
			session_id, organization_id, user_id,
			created_at, expires_at, last_used_at,
			user_agent, ip_address
		FROM sessions
		WHERE session_id = $1
	`

	var session models.Session
	var ipAddress *netip.Prefix
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, sessionID).Scan(
			&session.SessionID,
			&session.OrgID,
			&session.UserID,
			&session.CreatedAt,
			&session.ExpiresAt,
			&session.LastUsedAt,
			&session.UserAgent,
			&ipAddress,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	// inet scans as a prefix; the stored value is a host address, so drop
	// the /32 (or /128) rather than leak it into audit output.
	if ipAddress != nil {
		session.IPAddress = ipAddress.Addr().String()
	}

	if session.IsExpired() {
		return nil, store.ErrSessionExpired
	}

	return &session, nil
}

// UpdateLastUsed updates the last_used_at timestamp for a session.
func (s *SessionStore) UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error {
	query := `
		UPDATE sessions
		SET last_used_at = $2
		WHERE session_id = $1
	`

	var affected int64
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, sessionID, time.Now())
		if err != nil {
			return err
		}
		affected = result.RowsAffected()
		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to update session last_used_at: %w", err)
	}

	if affected == 0 {
		return store.ErrSessionNotFound
	}

	return nil
}

// Delete deletes a session by ID (logout).
func (s *SessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	query := `DELETE FROM sessions WHERE session_id = $1`

	var affected int64
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, sessionID)
		if err != nil {
			return err
		}
		affected = result.RowsAffected()
		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if affected == 0 {
		return store.ErrSessionNotFound
	}

	log.Debug().
		Str("session_id", sessionID.String()).
		Msg("Deleted session")

	return nil
}

// DeleteByUser deletes all sessions for a user (logout everywhere).
func (s *SessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `DELETE FROM sessions WHERE user_id = $1`

	var count int
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, userID)
		if err != nil {
			return err
		}
		count = int(result.RowsAffected())
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions by user: %w", err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Int("count", count).
		Msg("Deleted all sessions for user")

	return count, nil
}

// DeleteExpired deletes all expired sessions (cleanup job). Runs across all
// tenants, so callers pass a system-capability context.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	var count int
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, time.Now())
		if err != nil {
			return err
		}
		count = int(result.RowsAffected())
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	if count > 0 {
		log.Info().
			Int("count", count).
			Msg("Deleted expired sessions")
	}

	return count, nil
}

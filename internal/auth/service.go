// Package auth handles credential verification, server-side sessions and
// API tokens. Authentication is the one flow that starts without a tenant
// context: the organization is resolved from the login request or the
// session row, and everything after runs inside that tenant's context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/activity"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/telemetry"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

var (
	// ErrInvalidCredentials covers unknown organization, unknown user, wrong
	// password and deactivated accounts alike, so responses do not reveal
	// which part failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidSession is returned for sessions that are missing, expired
	// or belong to a user that no longer exists.
	ErrInvalidSession = errors.New("invalid session")
)

// Service verifies credentials and manages server-side sessions.
type Service struct {
	orgs     store.OrganizationStore
	users    store.UserStore
	sessions store.SessionStore
	recorder *activity.Recorder

	sessionTTL time.Duration
}

// NewService creates the auth service.
func NewService(orgs store.OrganizationStore, users store.UserStore, sessions store.SessionStore, recorder *activity.Recorder, sessionTTL time.Duration) *Service {
	return &Service{
		orgs:       orgs,
		users:      users,
		sessions:   sessions,
		recorder:   recorder,
		sessionTTL: sessionTTL,
	}
}

// Login verifies an email/password pair within an organization and opens a
// session. The organization slug scopes the lookup, so the same email can
// exist in several tenants without ambiguity.
func (s *Service) Login(ctx context.Context, orgSlug, email, password, userAgent, clientIP string) (*models.Session, *models.User, error) {
	org, err := s.orgs.GetBySlug(ctx, orgSlug)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			telemetry.GetMetrics().LoginFailuresTotal.Add(ctx, 1)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	orgCtx := tenant.WithOrganization(ctx, org.OrgID)

	user, err := s.users.GetByEmail(orgCtx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			telemetry.GetMetrics().LoginFailuresTotal.Add(ctx, 1)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if user.IsDeactivated() || user.PasswordHash == "" {
		telemetry.GetMetrics().LoginFailuresTotal.Add(ctx, 1)
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Ctx(ctx).Debug().Str("org", orgSlug).Msg("password mismatch")
		telemetry.GetMetrics().LoginFailuresTotal.Add(ctx, 1)
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.openSession(orgCtx, user, userAgent, clientIP)
	if err != nil {
		return nil, nil, err
	}

	return session, user, nil
}

// OpenSSOSession opens a session for a user already authenticated by an
// external identity provider.
func (s *Service) OpenSSOSession(ctx context.Context, orgSlug, email, userAgent, clientIP string) (*models.Session, *models.User, error) {
	org, err := s.orgs.GetBySlug(ctx, orgSlug)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	orgCtx := tenant.WithOrganization(ctx, org.OrgID)

	user, err := s.users.GetByEmail(orgCtx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if user.IsDeactivated() {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.openSession(orgCtx, user, userAgent, clientIP)
	if err != nil {
		return nil, nil, err
	}

	return session, user, nil
}

func (s *Service) openSession(orgCtx context.Context, user *models.User, userAgent, clientIP string) (*models.Session, error) {
	now := time.Now().UTC()

	session := &models.Session{
		SessionID:  uuid.Must(uuid.NewV7()),
		OrgID:      user.OrgID,
		UserID:     user.UserID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.sessionTTL),
		LastUsedAt: now,
		UserAgent:  userAgent,
		IPAddress:  clientIP,
	}

	if err := s.sessions.Create(orgCtx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.recorder.Record(orgCtx, activity.Event{
		ActorUserID: &user.UserID,
		Action:      "auth.login",
		EntityType:  "user",
		EntityID:    user.UserID,
		ClientIP:    clientIP,
	})

	telemetry.GetMetrics().LoginsTotal.Add(orgCtx, 1)

	log.Ctx(orgCtx).Debug().
		Str("user_id", user.UserID.String()).
		Str("session_id", session.SessionID.String()).
		Msg("session opened")

	return session, nil
}

// Resolve turns a session ID from a cookie back into an authenticated
// principal and a tenant-scoped context. The session row itself must be
// read with the system capability because the tenant is unknown until the
// row's organization is seen; the returned context is scoped to exactly
// that organization and nothing wider.
func (s *Service) Resolve(ctx context.Context, sessionID uuid.UUID) (context.Context, *models.Session, *models.User, error) {
	session, err := s.sessions.Get(tenant.AsSystem(ctx), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, store.ErrSessionExpired) {
			return nil, nil, nil, ErrInvalidSession
		}
		return nil, nil, nil, err
	}

	orgCtx := tenant.WithOrganization(ctx, session.OrgID)

	user, err := s.users.Get(orgCtx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, nil, ErrInvalidSession
		}
		return nil, nil, nil, err
	}

	if user.IsDeactivated() {
		return nil, nil, nil, ErrInvalidSession
	}

	if err := s.sessions.UpdateLastUsed(orgCtx, sessionID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to update session last used")
	}

	return orgCtx, session, user, nil
}

// Logout deletes the session.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	err := s.sessions.Delete(ctx, sessionID)
	if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return err
	}
	return nil
}

// RevokeUserSessions deletes every session belonging to a user, for use
// when an account is deactivated or its password reset.
func (s *Service) RevokeUserSessions(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.sessions.DeleteByUser(ctx, userID)
}

// SweepExpiredSessions removes expired session rows. Run periodically.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int, error) {
	return s.sessions.DeleteExpired(tenant.AsSystem(ctx))
}

// HashPassword produces a bcrypt hash for storage on a user record.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

type contextKey int

const principalContextKey contextKey = iota

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Roles  []string

	// SessionID is set for cookie-authenticated requests, nil for tokens.
	SessionID *uuid.UUID
}

// HasRole reports whether the principal holds the role. Admins implicitly
// hold the operator role, matching models.User.HasRole.
func (p *Principal) HasRole(role string) bool {
	if role == models.RoleOperator && slices.Contains(p.Roles, models.RoleAdmin) {
		return true
	}
	return slices.Contains(p.Roles, role)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok
}

// Middleware authenticates portal requests. A bearer token is checked
// first, then the session cookie, so API clients and browser sessions
// share the same protected routes.
type Middleware struct {
	service *Service
	cookies *CookieCodec
	tokens  *TokenIssuer
}

// NewMiddleware creates the authentication middleware.
func NewMiddleware(service *Service, cookies *CookieCodec, tokens *TokenIssuer) *Middleware {
	return &Middleware{
		service: service,
		cookies: cookies,
		tokens:  tokens,
	}
}

// Authenticate rejects unauthenticated requests and installs the principal
// and the tenant context for everything downstream. Handlers behind this
// middleware never see a context without an organization in it.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, principal, ok := m.authenticate(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx = context.WithValue(ctx, principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) authenticate(r *http.Request) (context.Context, *Principal, bool) {
	if token, ok := bearerToken(r); ok {
		return m.authenticateToken(r, token)
	}
	return m.authenticateCookie(r)
}

func (m *Middleware) authenticateToken(r *http.Request, token string) (context.Context, *Principal, bool) {
	claims, err := m.tokens.Verify(token)
	if err != nil {
		log.Ctx(r.Context()).Debug().Str("path", r.URL.Path).Msg("bearer token rejected")
		return nil, nil, false
	}

	orgID, err := uuid.Parse(claims.OrganizationID)
	if err != nil {
		return nil, nil, false
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, nil, false
	}

	principal := &Principal{
		UserID: userID,
		OrgID:  orgID,
		Roles:  claims.Roles,
	}

	return tenant.WithOrganization(r.Context(), orgID), principal, true
}

func (m *Middleware) authenticateCookie(r *http.Request) (context.Context, *Principal, bool) {
	sessionID, err := m.cookies.SessionIDFromRequest(r)
	if err != nil {
		return nil, nil, false
	}

	ctx, session, user, err := m.service.Resolve(r.Context(), sessionID)
	if err != nil {
		log.Ctx(r.Context()).Debug().Str("path", r.URL.Path).Msg("session rejected")
		return nil, nil, false
	}

	principal := &Principal{
		UserID:    user.UserID,
		OrgID:     user.OrgID,
		Roles:     user.Roles,
		SessionID: &session.SessionID,
	}

	return ctx, principal, true
}

// RequireRole rejects authenticated requests whose principal lacks the
// role. Must sit inside Authenticate.
func (m *Middleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !principal.HasRole(role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

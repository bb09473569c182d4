package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

func newTestMiddleware(t *testing.T, f *authFixture) (*Middleware, *TokenIssuer, *CookieCodec) {
	t.Helper()

	codec := newTestCodec(t)
	issuer := newTestIssuer(t, time.Hour)

	return NewMiddleware(f.service, codec, issuer), issuer, codec
}

func echoPrincipal(t *testing.T, captured **Principal, capturedOrg *uuid.UUID) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		*captured = p

		orgID, ok := tenant.FromContext(r.Context())
		require.True(t, ok)
		*capturedOrg = orgID

		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateBearer(t *testing.T) {
	assert := require.New(t)
	f := newAuthFixture(t)
	mw, issuer, _ := newTestMiddleware(t, f)

	token, err := issuer.Issue(f.user)
	assert.NoError(err)

	var principal *Principal
	var orgID uuid.UUID
	handler := mw.Authenticate(echoPrincipal(t, &principal, &orgID))

	req := httptest.NewRequest(http.MethodGet, "/cases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal(f.user.UserID, principal.UserID)
	assert.Equal(f.orgID, orgID)
	assert.Nil(principal.SessionID)
}

func TestAuthenticateCookie(t *testing.T) {
	assert := require.New(t)
	f := newAuthFixture(t)
	mw, _, codec := newTestMiddleware(t, f)

	session, _, err := f.service.Login(context.Background(), "acme", "casey@acme.example", "correct-horse", "", "")
	assert.NoError(err)

	var principal *Principal
	var orgID uuid.UUID
	handler := mw.Authenticate(echoPrincipal(t, &principal, &orgID))

	req := httptest.NewRequest(http.MethodGet, "/cases", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: codec.Encode(session.SessionID)})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal(f.user.UserID, principal.UserID)
	assert.Equal(f.orgID, orgID)
	assert.Equal(session.SessionID, *principal.SessionID)
}

func TestAuthenticateRejections(t *testing.T) {
	assert := require.New(t)
	f := newAuthFixture(t)
	mw, _, codec := newTestMiddleware(t, f)

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	// no credentials at all
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases", nil))
	assert.Equal(http.StatusUnauthorized, rec.Code)

	// garbage bearer token
	req := httptest.NewRequest(http.MethodGet, "/cases", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(http.StatusUnauthorized, rec.Code)

	// cookie pointing at a session that does not exist
	req = httptest.NewRequest(http.MethodGet, "/cases", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: codec.Encode(uuid.Must(uuid.NewV7()))})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	assert := require.New(t)
	f := newAuthFixture(t)
	mw, issuer, _ := newTestMiddleware(t, f)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	operatorOnly := mw.Authenticate(mw.RequireRole(models.RoleOperator)(ok))
	adminOnly := mw.Authenticate(mw.RequireRole(models.RoleAdmin)(ok))

	token, err := issuer.Issue(f.user) // operator role only
	assert.NoError(err)

	req := httptest.NewRequest(http.MethodGet, "/cases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	operatorOnly.ServeHTTP(rec, req)
	assert.Equal(http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	adminOnly.ServeHTTP(rec, req)
	assert.Equal(http.StatusForbidden, rec.Code)
}

func TestPrincipalHasRole(t *testing.T) {
	assert := require.New(t)

	admin := &Principal{Roles: []string{models.RoleAdmin}}
	assert.True(admin.HasRole(models.RoleAdmin))
	assert.True(admin.HasRole(models.RoleOperator), "admins act as operators")
	assert.False(admin.HasRole(models.RoleEmployee))

	employee := &Principal{Roles: []string{models.RoleEmployee}}
	assert.True(employee.HasRole(models.RoleEmployee))
	assert.False(employee.HasRole(models.RoleOperator))
}

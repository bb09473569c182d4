package login

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/activity"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/auth"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store/memory"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

type ssoFixture struct {
	sso      *SSO
	sessions *memory.SessionStore
	userID   uuid.UUID
	provider *httptest.Server
}

// newSSOFixture stands up a fake identity provider serving the token and
// userinfo endpoints, with one organization ("acme") and one existing user.
func newSSOFixture(t *testing.T, email string) *ssoFixture {
	t.Helper()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "provider-access-token",
				"token_type":   "Bearer",
			})
		case "/userinfo":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{
				"email": email,
				"name":  "Casey Operator",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(provider.Close)

	orgs := memory.NewOrganizationStore()
	users := memory.NewUserStore()
	sessions := memory.NewSessionStore()
	recorder := activity.NewRecorder(memory.NewActivityStore())

	orgID := uuid.Must(uuid.NewV7())
	require.NoError(t, orgs.Create(context.Background(), &models.Organization{
		OrgID:     orgID,
		Slug:      "acme",
		Name:      "Acme Corp",
		CreatedAt: time.Now().UTC(),
	}))

	user := &models.User{
		UserID:    uuid.Must(uuid.NewV7()),
		OrgID:     orgID,
		Email:     "casey@acme.example",
		Name:      "Casey Operator",
		Roles:     []string{models.RoleOperator},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, users.Create(tenant.WithOrganization(context.Background(), orgID), user))

	service := auth.NewService(orgs, users, sessions, recorder, time.Hour)

	cookies, err := auth.NewCookieCodec([]byte("0123456789abcdef0123456789abcdef"), true, time.Hour)
	require.NoError(t, err)

	sso, err := NewSSO(Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		AuthURL:      provider.URL + "/authorize",
		TokenURL:     provider.URL + "/token",
		UserInfoURL:  provider.URL + "/userinfo",
		CallbackURL:  "https://hotline.example/auth/sso/callback",
		Scopes:       []string{"openid", "email"},
	}, service, cookies, "/operator")
	require.NoError(t, err)

	return &ssoFixture{
		sso:      sso,
		sessions: sessions,
		userID:   user.UserID,
		provider: provider,
	}
}

func TestNewSSOValidation(t *testing.T) {
	assert := require.New(t)

	_, err := NewSSO(Config{ClientSecret: "s", CallbackURL: "cb"}, nil, nil, "/")
	assert.ErrorContains(err, "client ID")

	_, err = NewSSO(Config{ClientID: "id", ClientSecret: "s", CallbackURL: "cb"}, nil, nil, "/")
	assert.ErrorContains(err, "userinfo")
}

func TestLoginHandler(t *testing.T) {
	assert := require.New(t)
	f := newSSOFixture(t, "casey@acme.example")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/auth/sso/login?org=acme", nil)

	f.sso.LoginHandler(w, r)

	assert.Equal(http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.Contains(location, "/authorize")
	assert.Contains(location, "client_id=test-client-id")
	assert.Contains(location, "state=")

	names := map[string]string{}
	for _, c := range w.Result().Cookies() {
		names[c.Name] = c.Value
	}
	assert.Contains(names, stateCookieName)
	assert.Equal("acme", names[orgCookieName])
	assert.Contains(location, "state="+names[stateCookieName])
}

func TestLoginHandlerMissingOrg(t *testing.T) {
	assert := require.New(t)
	f := newSSOFixture(t, "casey@acme.example")

	w := httptest.NewRecorder()
	f.sso.LoginHandler(w, httptest.NewRequest(http.MethodGet, "/auth/sso/login", nil))

	assert.Equal(http.StatusBadRequest, w.Code)
}

func TestCallbackHandlerRejections(t *testing.T) {
	f := newSSOFixture(t, "casey@acme.example")

	tests := []struct {
		name   string
		target string
		setup  func(r *http.Request)
	}{
		{"missing state", "/callback?code=c", nil},
		{"missing code", "/callback?state=s", nil},
		{"no state cookie", "/callback?state=s&code=c", nil},
		{"state mismatch", "/callback?state=wrong&code=c", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "right"})
		}},
		{"missing org cookie", "/callback?state=s&code=c", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "s"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.setup != nil {
				tt.setup(r)
			}

			f.sso.CallbackHandler(w, r)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCallbackHandlerSignIn(t *testing.T) {
	assert := require.New(t)
	f := newSSOFixture(t, "casey@acme.example")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/callback?state=s&code=provider-code", nil)
	r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "s"})
	r.AddCookie(&http.Cookie{Name: orgCookieName, Value: "acme"})

	f.sso.CallbackHandler(w, r)

	assert.Equal(http.StatusFound, w.Code)
	assert.Equal("/operator", w.Header().Get("Location"))

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			sessionCookie = c
		}
	}
	assert.NotNil(sessionCookie, "expected a session cookie")

	sessionID, err := uuid.Parse(strings.SplitN(sessionCookie.Value, ".", 2)[0])
	assert.NoError(err)

	session, err := f.sessions.Get(tenant.AsSystem(context.Background()), sessionID)
	assert.NoError(err)
	assert.Equal(f.userID, session.UserID)
}

func TestCallbackHandlerUnknownUser(t *testing.T) {
	assert := require.New(t)

	// Provider vouches for an address no account in the organization has.
	f := newSSOFixture(t, "stranger@elsewhere.example")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/callback?state=s&code=provider-code", nil)
	r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "s"})
	r.AddCookie(&http.Cookie{Name: orgCookieName, Value: "acme"})

	f.sso.CallbackHandler(w, r)

	assert.Equal(http.StatusForbidden, w.Code)
}

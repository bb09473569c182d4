// Package login implements the OAuth2 authorization-code flow for operator
// single sign-on against a customer identity provider. The provider is
// generic: an auth/token endpoint pair plus a userinfo URL returning
// {"email": ..., "name": ...}. Accounts are not provisioned on first
// sign-in; the user must already exist in the organization.
package login

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/auth"
	httpware "github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/http"
)

const (
	stateCookieName = "_sso_state"
	orgCookieName   = "_sso_org"
)

// Config holds the identity provider endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	CallbackURL  string
	Scopes       []string
}

// SSO handles the browser-facing login and callback endpoints.
type SSO struct {
	config      *oauth2.Config
	userInfoURL string
	service     *auth.Service
	cookies     *auth.CookieCodec
	redirectTo  string
}

// NewSSO creates the SSO handler. redirectTo is where the browser lands
// after a completed sign-in.
func NewSSO(cfg Config, service *auth.Service, cookies *auth.CookieCodec, redirectTo string) (*SSO, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.CallbackURL == "" {
		return nil, fmt.Errorf("client ID, client secret, and callback URL are required")
	}
	if cfg.AuthURL == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
		return nil, fmt.Errorf("auth, token, and userinfo URLs are required")
	}

	return &SSO{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		service:     service,
		cookies:     cookies,
		redirectTo:  redirectTo,
	}, nil
}

func (s *SSO) saveFlowCookies(w http.ResponseWriter, orgSlug string) string {
	state := rand.Text()

	for name, value := range map[string]string{stateCookieName: state, orgCookieName: orgSlug} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   300,
		})
	}

	return state
}

func clearFlowCookies(w http.ResponseWriter) {
	for _, name := range []string{stateCookieName, orgCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// LoginHandler starts the flow. The organization slug comes from the org
// query parameter and rides along in a short-lived cookie.
func (s *SSO) LoginHandler(w http.ResponseWriter, r *http.Request) {
	orgSlug := r.URL.Query().Get("org")
	if orgSlug == "" {
		http.Error(w, "org parameter required", http.StatusBadRequest)
		return
	}

	log.Ctx(r.Context()).Debug().Str("org", orgSlug).Msg("initiating SSO flow")

	state := s.saveFlowCookies(w, orgSlug)
	http.Redirect(w, r, s.config.AuthCodeURL(state), http.StatusFound)
}

// CallbackHandler completes the flow: state check, code exchange, userinfo
// fetch, then a normal server-side session.
func (s *SSO) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	state := r.FormValue("state")
	code := r.FormValue("code")

	if state == "" || code == "" {
		log.Ctx(r.Context()).Warn().Msg("SSO callback missing state or code")
		http.Error(w, "authentication failed", http.StatusBadRequest)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || state != stateCookie.Value {
		log.Ctx(r.Context()).Warn().Msg("SSO callback state mismatch")
		http.Error(w, "authentication failed", http.StatusBadRequest)
		return
	}

	orgCookie, err := r.Cookie(orgCookieName)
	if err != nil || orgCookie.Value == "" {
		log.Ctx(r.Context()).Warn().Msg("SSO callback missing organization")
		http.Error(w, "authentication failed", http.StatusBadRequest)
		return
	}

	clearFlowCookies(w)

	token, err := s.config.Exchange(r.Context(), code)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("failed to exchange SSO code for token")
		http.Error(w, "authentication failed", http.StatusBadRequest)
		return
	}

	userInfo, err := s.fetchUserInfo(r.Context(), token)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("failed to fetch SSO user info")
		http.Error(w, "authentication failed", http.StatusBadRequest)
		return
	}

	if userInfo.Email == "" {
		log.Ctx(r.Context()).Warn().Msg("SSO user info missing email address")
		http.Error(w, "email address required", http.StatusBadRequest)
		return
	}

	session, user, err := s.service.OpenSSOSession(r.Context(), orgCookie.Value, userInfo.Email,
		r.UserAgent(), httpware.ClientIPFromContext(r.Context()))
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Str("org", orgCookie.Value).Msg("SSO sign-in rejected")
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	log.Ctx(r.Context()).Info().Str("user_id", user.UserID.String()).Msg("SSO sign-in complete")

	s.cookies.SetCookie(w, session.SessionID)
	http.Redirect(w, r, s.redirectTo, http.StatusFound)
}

type userInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *SSO) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*userInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := s.config.Client(ctx, token)
	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned HTTP %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &info, nil
}

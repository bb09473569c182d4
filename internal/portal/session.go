package portal

import (
	"net/http"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/auth"
	httpware "github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/http"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

func (p *Portal) registerAuthRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", p.handleLogin)
	mux.Handle("POST /auth/logout", p.authmw.Authenticate(http.HandlerFunc(p.handleLogout)))
	mux.Handle("POST /auth/token", p.authmw.Authenticate(http.HandlerFunc(p.handleIssueToken)))

	if p.sso != nil {
		mux.HandleFunc("GET /auth/sso/login", p.sso.LoginHandler)
		mux.HandleFunc("GET /auth/sso/callback", p.sso.CallbackHandler)
	}
}

type loginRequest struct {
	Organization string `json:"organization"`
	Email        string `json:"email"`
	Password     string `json:"password"`
}

type loginResponse struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

func (p *Portal) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, user, err := p.auth.Login(r.Context(), req.Organization, req.Email, req.Password,
		r.UserAgent(), httpware.ClientIPFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	p.cookies.SetCookie(w, session.SessionID)

	writeJSON(w, http.StatusOK, loginResponse{
		UserID: user.UserID.String(),
		Name:   user.Name,
		Email:  user.Email,
		Roles:  user.Roles,
	})
}

func (p *Portal) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	if principal != nil && principal.SessionID != nil {
		if err := p.auth.Logout(r.Context(), *principal.SessionID); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	p.cookies.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleIssueToken mints a short-lived bearer token for the session's user,
// so browser-authenticated operators can hand tokens to CLI tooling.
func (p *Portal) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || principal.SessionID == nil {
		writeError(w, r, http.StatusForbidden, "token issuance requires a session")
		return
	}

	token, err := p.tokens.Issue(&models.User{
		UserID: principal.UserID,
		OrgID:  principal.OrgID,
		Roles:  principal.Roles,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Package portal composes the employee, operator and public-report
// sub-portals into one HTTP handler. Browser routes sit behind CSRF
// protection, cross-origin API routes behind CORS, and everything gets
// client-IP capture, request logging and gzip compression.
package portal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"filippo.io/csrf"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/auth"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/cases"
	httpware "github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/http"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/login"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// Portal aggregates the sub-portals and their shared services.
type Portal struct {
	cases      *cases.Service
	auth       *auth.Service
	authmw     *auth.Middleware
	cookies    *auth.CookieCodec
	tokens     *auth.TokenIssuer
	sso        *login.SSO // nil when no identity provider is configured
	orgs       store.OrganizationStore
	activities store.ActivityStore

	corsOrigins []string
}

// Options carries the portal's collaborators.
type Options struct {
	Cases       *cases.Service
	Auth        *auth.Service
	AuthMW      *auth.Middleware
	Cookies     *auth.CookieCodec
	Tokens      *auth.TokenIssuer
	SSO         *login.SSO
	Orgs        store.OrganizationStore
	Activities  store.ActivityStore
	CORSOrigins []string
}

// New creates the portal.
func New(opts Options) *Portal {
	return &Portal{
		cases:       opts.Cases,
		auth:        opts.Auth,
		authmw:      opts.AuthMW,
		cookies:     opts.Cookies,
		tokens:      opts.Tokens,
		sso:         opts.SSO,
		orgs:        opts.Orgs,
		activities:  opts.Activities,
		corsOrigins: opts.CORSOrigins,
	}
}

// Handler builds the composed portal handler.
func (p *Portal) Handler(logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	p.registerAuthRoutes(mux)
	p.registerEmployeeRoutes(mux)
	p.registerOperatorRoutes(mux)
	p.registerReportRoutes(mux)

	// The public report portal serves cross-origin clients (embedded intake
	// widgets) and carries no cookies, so it gets CORS. Everything else is
	// same-origin or token-authenticated and sits behind CSRF protection,
	// which passes non-browser clients untouched.
	protection := csrf.New()
	corsmw := cors.New(cors.Options{
		AllowedOrigins: p.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	split := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicAPIRoute(r.URL.Path) {
			corsmw.Handler(mux).ServeHTTP(w, r)
			return
		}
		protection.Handler(mux).ServeHTTP(w, r)
	})

	handler := httpware.ClientIPMiddleware()(split)
	handler = httpware.RequestLogger(logger)(handler)

	return gzhttp.GzipHandler(handler)
}

func isPublicAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/report/") || strings.HasPrefix(path, "/healthz")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Int("status", status).Str("path", r.URL.Path).Msg(message)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service and store errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrCaseNotFound),
		errors.Is(err, store.ErrFileNotFound),
		errors.Is(err, store.ErrOrganizationNotFound),
		errors.Is(err, store.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, cases.ErrCaseMerged),
		errors.Is(err, cases.ErrOutcomeRecorded),
		errors.Is(err, cases.ErrMergeCycle),
		errors.Is(err, cases.ErrMergeTargetMerged):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, cases.ErrIllegalTransition),
		errors.Is(err, cases.ErrInvalidOutcome),
		errors.Is(err, cases.ErrUnknownPipeline):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidSession):
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

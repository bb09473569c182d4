package portal

import (
	"net/http"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/auth"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/cases"
	httpware "github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/http"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

// The employee portal is self-service: a reporter sees only the cases they
// opened, never the wider org case load.
func (p *Portal) registerEmployeeRoutes(mux *http.ServeMux) {
	protect := func(h http.HandlerFunc) http.Handler {
		return p.authmw.Authenticate(p.authmw.RequireRole(models.RoleEmployee)(h))
	}

	mux.Handle("POST /employee/cases", protect(p.handleEmployeeOpenCase))
	mux.Handle("GET /employee/cases", protect(p.handleEmployeeListCases))
	mux.Handle("GET /employee/cases/{id}", protect(p.handleEmployeeGetCase))
	mux.Handle("POST /employee/cases/{id}/files", protect(p.handleEmployeeAttachFile))
}

type openCaseRequest struct {
	Subject string `json:"subject"`
	Details string `json:"details"`
}

func (p *Portal) handleEmployeeOpenCase(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req openCaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, _, err := p.cases.OpenCase(r.Context(), cases.OpenCaseInput{
		Source:         models.CaseSourceEmployee,
		Subject:        req.Subject,
		Details:        req.Details,
		ReporterUserID: &principal.UserID,
		ClientIP:       httpware.ClientIPFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCaseResponse(c))
}

func (p *Portal) handleEmployeeListCases(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	list, err := p.cases.ListReporterCases(r.Context(), principal.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cases": toCaseResponses(list)})
}

// employeeCase loads a case and checks the principal reported it. Cases
// the employee did not open are reported as not found, not forbidden.
func (p *Portal) employeeCase(w http.ResponseWriter, r *http.Request) (*models.Case, bool) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	caseID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return nil, false
	}

	c, err := p.cases.GetCase(r.Context(), caseID)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}

	if c.ReporterUserID == nil || *c.ReporterUserID != principal.UserID {
		writeError(w, r, http.StatusNotFound, "not found")
		return nil, false
	}

	return c, true
}

func (p *Portal) handleEmployeeGetCase(w http.ResponseWriter, r *http.Request) {
	c, ok := p.employeeCase(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

func (p *Portal) handleEmployeeAttachFile(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	c, ok := p.employeeCase(w, r)
	if !ok {
		return
	}

	file, ok := p.attachUpload(w, r, c, &principal.UserID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusCreated, toFileResponse(file))
}

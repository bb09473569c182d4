package portal

import (
	"context"
	"net/http"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/cases"
	httpware "github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/http"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/tenant"
)

// The public report portal is anonymous: no authentication, organization
// resolved from the URL slug, and the only way back to a submitted report
// is the access code handed out at submission time.
func (p *Portal) registerReportRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /report/{org}", p.handleSubmitReport)
	mux.HandleFunc("GET /report/{org}/status", p.handleReportStatus)
}

// reportContext resolves the organization slug into a tenant context. The
// organizations table is the one table not behind row-level security, which
// is exactly what lets this lookup run before any tenant is known.
func (p *Portal) reportContext(w http.ResponseWriter, r *http.Request) (context.Context, bool) {
	org, err := p.orgs.GetBySlug(r.Context(), r.PathValue("org"))
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}

	return tenant.WithOrganization(r.Context(), org.OrgID), true
}

type submitReportRequest struct {
	Subject string `json:"subject"`
	Details string `json:"details"`
}

type submitReportResponse struct {
	ReferenceCode string `json:"reference_code"`
	AccessCode    string `json:"access_code"`
}

func (p *Portal) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	ctx, ok := p.reportContext(w, r)
	if !ok {
		return
	}

	var req submitReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, accessCode, err := p.cases.OpenCase(ctx, cases.OpenCaseInput{
		Source:   models.CaseSourcePublic,
		Subject:  req.Subject,
		Details:  req.Details,
		ClientIP: httpware.ClientIPFromContext(ctx),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitReportResponse{
		ReferenceCode: c.ReferenceCode,
		AccessCode:    accessCode,
	})
}

type reportStatusResponse struct {
	ReferenceCode string `json:"reference_code"`
	Stage         string `json:"stage"`
	HasOutcome    bool   `json:"has_outcome"`
}

// handleReportStatus is deliberately terse: an anonymous reporter learns
// the stage and whether a decision exists, not the investigation details.
func (p *Portal) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	ctx, ok := p.reportContext(w, r)
	if !ok {
		return
	}

	accessCode := r.URL.Query().Get("access_code")
	if accessCode == "" {
		writeError(w, r, http.StatusBadRequest, "access_code parameter required")
		return
	}

	c, err := p.cases.StatusByAccessCode(ctx, accessCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reportStatusResponse{
		ReferenceCode: c.ReferenceCode,
		Stage:         c.PipelineStage,
		HasOutcome:    c.HasOutcome(),
	})
}

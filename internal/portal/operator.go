package portal

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/auth"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/cases"
	httpware "github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/http"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// The operator portal is the hotline console: full case access within the
// operator's organization. Erasure additionally requires the admin role.
func (p *Portal) registerOperatorRoutes(mux *http.ServeMux) {
	operator := func(h http.HandlerFunc) http.Handler {
		return p.authmw.Authenticate(p.authmw.RequireRole(models.RoleOperator)(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return p.authmw.Authenticate(p.authmw.RequireRole(models.RoleAdmin)(h))
	}

	mux.Handle("GET /operator/cases", operator(p.handleOperatorListCases))
	mux.Handle("POST /operator/cases", operator(p.handleOperatorOpenCase))
	mux.Handle("GET /operator/cases/{id}", operator(p.handleOperatorGetCase))
	mux.Handle("POST /operator/cases/{id}/stage", operator(p.handleOperatorStage))
	mux.Handle("POST /operator/cases/{id}/outcome", operator(p.handleOperatorOutcome))
	mux.Handle("POST /operator/cases/{id}/merge", operator(p.handleOperatorMerge))
	mux.Handle("GET /operator/cases/{id}/activity", operator(p.handleOperatorActivity))
	mux.Handle("GET /operator/cases/{id}/files", operator(p.handleOperatorListFiles))
	mux.Handle("POST /operator/cases/{id}/files", operator(p.handleOperatorAttachFile))
	mux.Handle("GET /operator/files/{id}", operator(p.handleOperatorDownloadFile))
	mux.Handle("DELETE /operator/cases/{id}", admin(p.handleOperatorEraseCase))
}

func (p *Portal) handleOperatorListCases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.CaseFilter{
		PipelineStage: q.Get("stage"),
		Outcome:       models.Outcome(q.Get("outcome")),
		Source:        models.CaseSource(q.Get("source")),
		IncludeMerged: q.Get("include_merged") == "true",
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	list, err := p.cases.ListCases(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cases": toCaseResponses(list)})
}

func (p *Portal) handleOperatorOpenCase(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req openCaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, _, err := p.cases.OpenCase(r.Context(), cases.OpenCaseInput{
		Source:         models.CaseSourceOperator,
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

func (p *Portal) handleOperatorGetCase(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	c, err := p.cases.GetCase(r.Context(), caseID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

type stageRequest struct {
	Stage string `json:"stage"`
}

func (p *Portal) handleOperatorStage(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	caseID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	var req stageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := p.cases.TransitionStage(r.Context(), caseID, req.Stage, &principal.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

type outcomeRequest struct {
	Outcome string `json:"outcome"`
	Notes   string `json:"notes"`
}

func (p *Portal) handleOperatorOutcome(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	caseID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	var req outcomeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := p.cases.RecordOutcome(r.Context(), caseID, models.Outcome(req.Outcome), req.Notes, &principal.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

type mergeRequest struct {
	IntoCaseID string `json:"into_case_id"`
	Reason     string `json:"reason"`
}

func (p *Portal) handleOperatorMerge(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	caseID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	var req mergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	intoCaseID, ok := parseID(req.IntoCaseID)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "into_case_id must be a case ID")
		return
	}

	c, err := p.cases.MergeCases(r.Context(), caseID, intoCaseID, req.Reason, &principal.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

func (p *Portal) handleOperatorActivity(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	if _, err := p.cases.GetCase(r.Context(), caseID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := p.activities.ListByEntity(r.Context(), "case", caseID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": toEventResponses(events)})
}

func (p *Portal) handleOperatorListFiles(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	files, err := p.cases.ListFiles(r.Context(), caseID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": toFileResponses(files)})
}

func (p *Portal) handleOperatorAttachFile(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	caseID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	c, err := p.cases.GetCase(r.Context(), caseID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	file, ok := p.attachUpload(w, r, c, &principal.UserID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusCreated, toFileResponse(file))
}

func (p *Portal) handleOperatorDownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	file, reader, err := p.cases.OpenFile(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", file.ContentType)
	// FormatMediaType quotes and escapes the filename; uploaders choose it.
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.Header().Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))

	if _, err := io.Copy(w, reader); err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("file download interrupted")
	}
}

func (p *Portal) handleOperatorEraseCase(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	caseID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	if err := p.cases.EraseCase(r.Context(), caseID, &principal.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "erased"})
}

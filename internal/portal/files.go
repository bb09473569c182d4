package portal

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

// maxUploadBytes caps attachment uploads at 25 MiB.
const maxUploadBytes = 25 << 20

// attachUpload reads a multipart upload from the "file" form field and
// stores it against the case.
func (p *Portal) attachUpload(w http.ResponseWriter, r *http.Request, c *models.Case, actorID *uuid.UUID) (*models.CaseFile, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file form field required")
		return nil, false
	}
	defer part.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	file, err := p.cases.AttachFile(r.Context(), c.CaseID, header.Filename, contentType, part, actorID)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}

	return file, true
}

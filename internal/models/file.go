package models

import (
	"time"

	"github.com/google/uuid"
)

// CaseFile is the metadata record for a file attached to a case. The bytes
// live in a storage backend (local disk or S3) under StorageKey; the row is
// tenant-scoped and is removed with its case.
type CaseFile struct {
	FileID uuid.UUID // UUIDv7
	OrgID  uuid.UUID
	CaseID uuid.UUID

	Name        string
	ContentType string
	SizeBytes   int64
	StorageKey  string

	UploadedByID *uuid.UUID // Nulled if the uploader is deleted
	CreatedAt    time.Time
}

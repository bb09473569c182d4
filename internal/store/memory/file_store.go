package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// FileStore implements store.FileStore using in-memory storage.
type FileStore struct {
	mu sync.RWMutex

	files map[uuid.UUID]*models.CaseFile
}

// NewFileStore creates a new in-memory case file store.
func NewFileStore() *FileStore {
	return &FileStore{
		files: make(map[uuid.UUID]*models.CaseFile),
	}
}

// DeleteByCase removes all attachment records for a case, mirroring the
// ON DELETE CASCADE constraint on case_files.case_id. Registered with
// CaseStore.OnDelete.
func (s *FileStore) DeleteByCase(caseID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for fileID, file := range s.files {
		if file.CaseID == caseID {
			delete(s.files, fileID)
		}
	}
}

// ClearActorRefs nulls the uploader reference on attachments from a
// deleted user, mirroring ON DELETE SET NULL. Registered with
// UserStore.OnDelete.
func (s *FileStore) ClearActorRefs(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, file := range s.files {
		if file.UploadedByID != nil && *file.UploadedByID == userID {
			file.UploadedByID = nil
		}
	}
}

// Create inserts a new attachment metadata record.
func (s *FileStore) Create(ctx context.Context, file *models.CaseFile) error {
	if !visible(ctx, file.OrgID) {
		return store.ErrFileNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *file
	s.files[file.FileID] = &clone

	return nil
}

// Get retrieves an attachment record by ID.
func (s *FileStore) Get(ctx context.Context, fileID uuid.UUID) (*models.CaseFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.files[fileID]
	if !exists || !visible(ctx, file.OrgID) {
		return nil, store.ErrFileNotFound
	}

	clone := *file
	return &clone, nil
}

// ListByCase returns all attachments for a case, oldest first.
func (s *FileStore) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*models.CaseFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var files []*models.CaseFile
	for _, file := range s.files {
		if file.CaseID == caseID && visible(ctx, file.OrgID) {
			clone := *file
			files = append(files, &clone)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})

	return files, nil
}

// Delete removes an attachment metadata record.
func (s *FileStore) Delete(ctx context.Context, fileID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, exists := s.files[fileID]
	if !exists || !visible(ctx, file.OrgID) {
		return store.ErrFileNotFound
	}

	delete(s.files, fileID)
	return nil
}

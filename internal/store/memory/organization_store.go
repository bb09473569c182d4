package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// OrganizationStore implements store.OrganizationStore using in-memory
// storage. Organizations are exempt from tenant filtering, matching the
// PostgreSQL backend.
type OrganizationStore struct {
	mu sync.RWMutex

	orgs       map[uuid.UUID]*models.Organization
	orgsBySlug map[string]*models.Organization
}

// NewOrganizationStore creates a new in-memory organization store.
func NewOrganizationStore() *OrganizationStore {
	return &OrganizationStore{
		orgs:       make(map[uuid.UUID]*models.Organization),
		orgsBySlug: make(map[string]*models.Organization),
	}
}

// Create creates a new organization in memory.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orgs[org.OrgID]; exists {
		return store.ErrOrganizationAlreadyExists
	}
	if _, exists := s.orgsBySlug[org.Slug]; exists {
		return store.ErrOrganizationAlreadyExists
	}

	clone := *org
	s.orgs[org.OrgID] = &clone
	s.orgsBySlug[org.Slug] = &clone

	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.orgs[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *org
	return &clone, nil
}

// GetBySlug retrieves an organization by its URL slug.
func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.orgsBySlug[slug]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *org
	return &clone, nil
}

// Update updates an existing organization.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.orgs[org.OrgID]
	if !exists {
		return store.ErrOrganizationNotFound
	}

	delete(s.orgsBySlug, existing.Slug)

	org.UpdatedAt = time.Now()
	clone := *org
	s.orgs[org.OrgID] = &clone
	s.orgsBySlug[org.Slug] = &clone

	return nil
}

// Delete deletes an organization by ID.
func (s *OrganizationStore) Delete(ctx context.Context, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, exists := s.orgs[orgID]
	if !exists {
		return store.ErrOrganizationNotFound
	}

	delete(s.orgsBySlug, org.Slug)
	delete(s.orgs, orgID)

	return nil
}

// List returns all organizations, newest first.
func (s *OrganizationStore) List(ctx context.Context) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgs := make([]*models.Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		clone := *org
		orgs = append(orgs, &clone)
	}

	sort.Slice(orgs, func(i, j int) bool {
		return orgs[i].CreatedAt.After(orgs[j].CreatedAt)
	})

	return orgs, nil
}

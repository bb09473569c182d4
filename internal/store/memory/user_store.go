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

// UserStore implements store.UserStore using in-memory storage with the same
// tenant visibility rules as the PostgreSQL backend.
type UserStore struct {
	mu sync.RWMutex

	users map[uuid.UUID]*models.User

	// onDelete callbacks emulate the schema's ON DELETE behaviour so unit
	// tests exercise the same referential cleanup as the real database.
	onDelete []func(userID uuid.UUID)
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[uuid.UUID]*models.User),
	}
}

// OnDelete registers a callback invoked when a user row is deleted. The
// memory case, session and activity stores register here to mirror the
// SET NULL / CASCADE constraints.
func (s *UserStore) OnDelete(fn func(userID uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = append(s.onDelete, fn)
}

// Create creates a new user in memory.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if !visible(ctx, user.OrgID) {
		// WITH CHECK equivalent: the insert silently affects nothing in
		// Postgres terms, which surfaces as a policy violation. Report the
		// nearest sentinel.
		return store.ErrUserNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.UserID]; exists {
		return store.ErrUserAlreadyExists
	}
	for _, existing := range s.users {
		if existing.OrgID == user.OrgID && existing.Email == user.Email && existing.DeletedAt == nil {
			return store.ErrUserAlreadyExists
		}
	}

	clone := *user
	s.users[user.UserID] = &clone

	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists || !visible(ctx, user.OrgID) {
		return nil, store.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// GetByEmail retrieves a non-deactivated user by email within the tenant
// context.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email && user.DeletedAt == nil && visible(ctx, user.OrgID) {
			clone := *user
			return &clone, nil
		}
	}

	return nil, store.ErrUserNotFound
}

// Update updates an existing user.
func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.users[user.UserID]
	if !exists || !visible(ctx, existing.OrgID) {
		return store.ErrUserNotFound
	}

	user.UpdatedAt = time.Now()
	clone := *user
	s.users[user.UserID] = &clone

	return nil
}

// Delete removes a user and fires the registered referential cleanup
// callbacks.
func (s *UserStore) Delete(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()

	user, exists := s.users[userID]
	if !exists || !visible(ctx, user.OrgID) {
		s.mu.Unlock()
		return store.ErrUserNotFound
	}

	delete(s.users, userID)
	callbacks := make([]func(uuid.UUID), len(s.onDelete))
	copy(callbacks, s.onDelete)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(userID)
	}

	return nil
}

// List returns all users visible in the tenant context, newest first.
func (s *UserStore) List(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []*models.User
	for _, user := range s.users {
		if visible(ctx, user.OrgID) {
			clone := *user
			users = append(users, &clone)
		}
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})

	return users, nil
}

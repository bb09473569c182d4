package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// UserStore implements store.UserStore using PostgreSQL. All queries run
// inside tenant-scoped transactions; row-level security does the filtering.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new PostgreSQL-backed user store.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{
		pool: pool,
	}
}

const userColumns = `
	user_id, organization_id, email, name, password_hash, roles,
	created_at, updated_at, deleted_at
`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.UserID,
		&user.OrgID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Roles,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user. The row's organization must match the tenant
// context, otherwise the policy WITH CHECK rejects the insert.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			user.UserID,
			user.OrgID,
			user.Email,
			user.Name,
			user.PasswordHash,
			user.Roles,
			user.CreatedAt,
			user.UpdatedAt,
			user.DeletedAt,
		)
		return err
	})

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("user_id", user.UserID.String()).
		Str("organization_id", user.OrgID.String()).
		Msg("Created user")

	return nil
}

// Get retrieves a user by ID within the tenant context.
func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	var user *models.User
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, query, userID))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a non-deactivated user by email within the tenant
// context. Email uniqueness is per organization, so the same address can
// exist under several tenants without ambiguity here.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`

	var user *models.User
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, query, email))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// Update updates an existing user.
func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET
			email = $2,
			name = $3,
			password_hash = $4,
			roles = $5,
			updated_at = $6,
			deleted_at = $7
		WHERE user_id = $1
	`

	var affected int64
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query,
			user.UserID,
			user.Email,
			user.Name,
			user.PasswordHash,
			user.Roles,
			user.UpdatedAt,
			user.DeletedAt,
		)
		if err != nil {
			return err
		}
		affected = result.RowsAffected()
		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to update user: %w", mapPostgresError(err))
	}

	if affected == 0 {
		return store.ErrUserNotFound
	}

	return nil
}

// Delete removes a user row entirely. Actor references on cases and activity
// events are nulled out by the ON DELETE SET NULL constraints; sessions are
// cascade-deleted.
func (s *UserStore) Delete(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM users WHERE user_id = $1`

	var affected int64
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, userID)
		if err != nil {
			return err
		}
		affected = result.RowsAffected()
		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to delete user: %w", mapPostgresError(err))
	}

	if affected == 0 {
		return store.ErrUserNotFound
	}

	log.Info().
		Str("user_id", userID.String()).
		Msg("Deleted user (actor references nulled)")

	return nil
}

// List returns all users visible in the tenant context, newest first.
func (s *UserStore) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	var users []*models.User
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return fmt.Errorf("failed to scan user: %w", err)
			}
			users = append(users, user)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

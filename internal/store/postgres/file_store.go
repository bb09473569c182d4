package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
)

// FileStore implements store.FileStore using PostgreSQL.
type FileStore struct {
	pool *pgxpool.Pool
}

// NewFileStore creates a new PostgreSQL-backed case file store.
func NewFileStore(pool *pgxpool.Pool) *FileStore {
	return &FileStore{
		pool: pool,
	}
}

const fileColumns = `
	file_id, organization_id, case_id, name, content_type,
	size_bytes, storage_key, uploaded_by_id, created_at
`

func scanFile(row pgx.Row) (*models.CaseFile, error) {
	var f models.CaseFile
	err := row.Scan(
		&f.FileID,
		&f.OrgID,
		&f.CaseID,
		&f.Name,
		&f.ContentType,
		&f.SizeBytes,
		&f.StorageKey,
		&f.UploadedByID,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Create inserts a new attachment metadata row.
func (s *FileStore) Create(ctx context.Context, file *models.CaseFile) error {
	query := `
		INSERT INTO case_files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			file.FileID,
			file.OrgID,
			file.CaseID,
			file.Name,
			file.ContentType,
			file.SizeBytes,
			file.StorageKey,
			file.UploadedByID,
			file.CreatedAt,
		)
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to create case file: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("file_id", file.FileID.String()).
		Str("case_id", file.CaseID.String()).
		Str("name", file.Name).
		Msg("Created case file")

	return nil
}

// Get retrieves an attachment record by ID.
func (s *FileStore) Get(ctx context.Context, fileID uuid.UUID) (*models.CaseFile, error) {
	query := `SELECT ` + fileColumns + ` FROM case_files WHERE file_id = $1`

	var file *models.CaseFile
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		file, err = scanFile(tx.QueryRow(ctx, query, fileID))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get case file: %w", err)
	}

	return file, nil
}

// ListByCase returns all attachments for a case, oldest first.
func (s *FileStore) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*models.CaseFile, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM case_files
		WHERE case_id = $1
		ORDER BY created_at ASC
	`

	var files []*models.CaseFile
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, caseID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			file, err := scanFile(rows)
			if err != nil {
				return fmt.Errorf("failed to scan case file: %w", err)
			}
			files = append(files, file)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list case files: %w", err)
	}

	return files, nil
}

// Delete removes an attachment metadata row. The bytes in the storage
// backend are the caller's to clean up.
func (s *FileStore) Delete(ctx context.Context, fileID uuid.UUID) error {
	query := `DELETE FROM case_files WHERE file_id = $1`

	var affected int64
	err := withTenantTx(ctx, s.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, fileID)
		if err != nil {
			return err
		}
		affected = result.RowsAffected()
		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to delete case file: %w", err)
	}

	if affected == 0 {
		return store.ErrFileNotFound
	}

	return nil
}

// Package db provides PostgreSQL database access for the record repository
// API.
//
// This file implements CRUD for the format table. schema is persisted as
// JSONB and is immutable post-creation — only name/description ever update.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/recordkeeper/api/internal/models"
)

// FormatDB handles database operations for formats.
type FormatDB struct {
	db *sql.DB
}

// NewFormatDB creates a new FormatDB instance.
func NewFormatDB(db *sql.DB) *FormatDB {
	return &FormatDB{db: db}
}

// CreateFormat inserts a new format with its ordered column schema.
func (f *FormatDB) CreateFormat(ctx context.Context, name, description string, schema []models.Column, createdBy string) (*models.Format, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	format := &models.Format{}
	err = f.db.QueryRowContext(ctx, `
		INSERT INTO format (name, description, schema, created_by, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, name, description, schema, created_by, created_at
	`, name, description, schemaJSON, createdBy).Scan(
		&format.ID, &format.Name, &format.Description, scanSchema(&format.Schema), &format.CreatedBy, &format.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create format: %w", err)
	}
	return format, nil
}

// scanSchema returns a sql.Scanner that unmarshals a JSONB schema column
// into dst.
func scanSchema(dst *[]models.Column) *schemaScanner {
	return &schemaScanner{dst: dst}
}

type schemaScanner struct {
	dst *[]models.Column
}

func (s *schemaScanner) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported schema column type %T", src)
	}
	return json.Unmarshal(raw, s.dst)
}

// GetFormat retrieves a format by ID.
func (f *FormatDB) GetFormat(ctx context.Context, id int64) (*models.Format, error) {
	format := &models.Format{}
	err := f.db.QueryRowContext(ctx, `
		SELECT id, name, description, schema, created_by, created_at
		FROM format WHERE id = $1
	`, id).Scan(&format.ID, &format.Name, &format.Description, scanSchema(&format.Schema), &format.CreatedBy, &format.CreatedAt)
	if err != nil {
		return nil, err
	}
	return format, nil
}

// ListFormats returns formats in a stable order (by id), optionally
// restricted to a set of IDs the caller may read. A nil ids slice lists
// every format (superuser path); an empty, non-nil slice returns none.
func (f *FormatDB) ListFormats(ctx context.Context, ids []int64, offset, limit int) ([]*models.Format, error) {
	var rows *sql.Rows
	var err error

	if ids == nil {
		rows, err = f.db.QueryContext(ctx, `
			SELECT id, name, description, schema, created_by, created_at
			FROM format ORDER BY id ASC OFFSET $1 LIMIT $2
		`, offset, limit)
	} else if len(ids) == 0 {
		return []*models.Format{}, nil
	} else {
		rows, err = f.db.QueryContext(ctx, `
			SELECT id, name, description, schema, created_by, created_at
			FROM format WHERE id = ANY($1) ORDER BY id ASC OFFSET $2 LIMIT $3
		`, pq.Array(ids), offset, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	formats := []*models.Format{}
	for rows.Next() {
		format := &models.Format{}
		if err := rows.Scan(&format.ID, &format.Name, &format.Description, scanSchema(&format.Schema), &format.CreatedBy, &format.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan format row: %w", err)
		}
		formats = append(formats, format)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating format rows: %w", err)
	}
	return formats, nil
}

// HasUploadSessions reports whether any upload session still references
// this format — used to refuse format deletion while records exist.
func (f *FormatDB) HasUploadSessions(ctx context.Context, formatID int64) (bool, error) {
	var exists bool
	err := f.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM upload_session WHERE format_id = $1)
	`, formatID).Scan(&exists)
	return exists, err
}

// DeleteFormat removes a format row. Entitlements cascade; the caller must
// have already confirmed no upload sessions reference it.
func (f *FormatDB) DeleteFormat(ctx context.Context, id int64) error {
	_, err := f.db.ExecContext(ctx, `DELETE FROM format WHERE id = $1`, id)
	return err
}

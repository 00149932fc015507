// Package db provides PostgreSQL database access for the record repository
// API.
//
// This file implements record insertion and the low-level query/stream
// primitives used by internal/query and internal/csvexport. Every method
// here accepts an already-parameterized WHERE fragment and its bound
// arguments — building that fragment from user input is the query engine's
// job (internal/query), never this package's; this package only ever binds
// values through $N placeholders, never string-concatenates them into SQL.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/recordkeeper/api/internal/models"
)

// RecordDB handles database operations for records.
type RecordDB struct {
	db *sql.DB
}

// NewRecordDB creates a new RecordDB instance.
func NewRecordDB(db *sql.DB) *RecordDB {
	return &RecordDB{db: db}
}

// InsertRecordsTx inserts rows in chunks of chunkSize within tx, returning
// the total number inserted. Any chunk failure aborts immediately; the
// caller is expected to roll back the whole transaction.
func (r *RecordDB) InsertRecordsTx(ctx context.Context, tx *sql.Tx, formatID int64, sessionID string, rows []map[string]any, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = len(rows)
	}

	var inserted int64
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		query, args, err := buildInsertRecordsStatement(formatID, sessionID, chunk)
		if err != nil {
			return inserted, fmt.Errorf("row %d: %w", start, err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert records chunk starting at row %d: %w", start, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

// buildInsertRecordsStatement builds a single multi-row INSERT with $N
// placeholders for one chunk.
func buildInsertRecordsStatement(formatID int64, sessionID string, rows []map[string]any) (string, []interface{}, error) {
	query := `INSERT INTO record (format_id, upload_session_id, data) VALUES `
	args := make([]interface{}, 0, len(rows)*3)
	argIdx := 1
	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal row data: %w", err)
		}
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("($%d, $%d, $%d)", argIdx, argIdx+1, argIdx+2)
		args = append(args, formatID, sessionID, data)
		argIdx += 3
	}
	return query, args, nil
}

// scanRecord scans one record row, unmarshaling its JSONB data column.
func scanRecord(row interface {
	Scan(dest ...interface{}) error
}) (*models.Record, error) {
	rec := &models.Record{}
	var raw []byte
	if err := row.Scan(&rec.ID, &rec.FormatID, &rec.UploadSessionID, &raw, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record data: %w", err)
	}
	return rec, nil
}

// QueryRecords executes a single parameterized SELECT against the record
// table scoped to formatID, applying whereSQL/whereArgs (a fragment built by
// internal/query, always referencing $1.. starting after the leading
// formatID placeholder), orderBySQL, and a page of limit/offset.
func (r *RecordDB) QueryRecords(ctx context.Context, formatID int64, whereSQL string, whereArgs []interface{}, orderBySQL string, limit, offset int) ([]*models.Record, error) {
	n := len(whereArgs) + 2
	query := fmt.Sprintf(`
		SELECT id, format_id, upload_session_id, data, created_at
		FROM record WHERE format_id = $1 %s %s LIMIT $%d OFFSET $%d
	`, whereSQL, orderBySQL, n, n+1)

	args := append([]interface{}{formatID}, whereArgs...)
	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating record rows: %w", err)
	}
	return records, nil
}

// CountRecords returns the total row count for a filter, used only when
// RETURN_QUERY_COUNT is enabled.
func (r *RecordDB) CountRecords(ctx context.Context, formatID int64, whereSQL string, whereArgs []interface{}) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM record WHERE format_id = $1 %s`, whereSQL)
	args := append([]interface{}{formatID}, whereArgs...)

	var count int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// StreamRecordsPartition opens a server-side cursor over one disjoint
// partition of a filter (partitionSQL further restricts rows by id modulo
// the partition count), for the CSV streaming pipeline's producers. The
// caller must close the returned rows; cancelling ctx cancels the cursor.
func (r *RecordDB) StreamRecordsPartition(ctx context.Context, formatID int64, whereSQL string, whereArgs []interface{}, partitionSQL string, partitionArgs []interface{}) (*sql.Rows, error) {
	query := fmt.Sprintf(`
		SELECT id, format_id, upload_session_id, data, created_at
		FROM record WHERE format_id = $1 %s %s ORDER BY id ASC
	`, whereSQL, partitionSQL)

	args := append([]interface{}{formatID}, whereArgs...)
	args = append(args, partitionArgs...)
	return r.db.QueryContext(ctx, query, args...)
}

// ScanRecord exposes scanRecord to callers (e.g. internal/csvexport)
// iterating a *sql.Rows returned by StreamRecordsPartition.
func ScanRecord(rows *sql.Rows) (*models.Record, error) {
	return scanRecord(rows)
}

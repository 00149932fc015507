// Package db provides PostgreSQL database access for the record repository
// API.
//
// This file implements CRUD for the upload_session table.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recordkeeper/api/internal/models"
)

// UploadSessionDB handles database operations for upload sessions.
type UploadSessionDB struct {
	db *sql.DB
}

// NewUploadSessionDB creates a new UploadSessionDB instance.
func NewUploadSessionDB(db *sql.DB) *UploadSessionDB {
	return &UploadSessionDB{db: db}
}

// CreateUploadSessionTx inserts a new session row within the caller's
// transaction — upload sessions are always created as part of the
// ingestion pipeline's single transaction, never standalone.
func (s *UploadSessionDB) CreateUploadSessionTx(ctx context.Context, tx *sql.Tx, formatID int64, userID string) (*models.UploadSession, error) {
	session := &models.UploadSession{
		ID:        uuid.New().String(),
		FormatID:  formatID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO upload_session (id, format_id, user_id, record_count, created_at)
		VALUES ($1, $2, $3, 0, $4)
	`, session.ID, session.FormatID, session.UserID, session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload session: %w", err)
	}
	return session, nil
}

// SetRecordCountTx updates the session's final row count, called once after
// all chunks have been inserted.
func (s *UploadSessionDB) SetRecordCountTx(ctx context.Context, tx *sql.Tx, sessionID string, count int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE upload_session SET record_count = $1 WHERE id = $2
	`, count, sessionID)
	return err
}

// GetUploadSession retrieves a session by ID.
func (s *UploadSessionDB) GetUploadSession(ctx context.Context, id string) (*models.UploadSession, error) {
	session := &models.UploadSession{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, format_id, user_id, record_count, created_at
		FROM upload_session WHERE id = $1
	`, id).Scan(&session.ID, &session.FormatID, &session.UserID, &session.RecordCount, &session.CreatedAt)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListUploadSessionsForUser lists a caller's own sessions, newest first.
func (s *UploadSessionDB) ListUploadSessionsForUser(ctx context.Context, userID string, offset, limit int) ([]*models.UploadSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, format_id, user_id, record_count, created_at
		FROM upload_session WHERE user_id = $1
		ORDER BY created_at DESC OFFSET $2 LIMIT $3
	`, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*models.UploadSession{}
	for rows.Next() {
		session := &models.UploadSession{}
		if err := rows.Scan(&session.ID, &session.FormatID, &session.UserID, &session.RecordCount, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upload session rows: %w", err)
	}
	return sessions, nil
}

// DeleteUploadSession removes a session; Records cascade by foreign key.
func (s *UploadSessionDB) DeleteUploadSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM upload_session WHERE id = $1`, id)
	return err
}

// DeleteUploadSessionsOlderThan deletes, in one statement, at most limit of
// the oldest sessions created before cutoff and returns how many it
// deleted. The prune job calls it repeatedly, one batch per call, until a
// batch comes back short; see internal/prune.
func (s *UploadSessionDB) DeleteUploadSessionsOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM upload_session
		WHERE id IN (
			SELECT id FROM upload_session WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

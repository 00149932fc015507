// Package db provides PostgreSQL database access for the record repository
// API.
//
// This file implements CRUD for the api_key table, including atomic
// rotation.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recordkeeper/api/internal/models"
)

// ApiKeyDB handles database operations for API keys.
type ApiKeyDB struct {
	db *sql.DB
}

// NewApiKeyDB creates a new ApiKeyDB instance.
func NewApiKeyDB(db *sql.DB) *ApiKeyDB {
	return &ApiKeyDB{db: db}
}

// CreateApiKey inserts a new active key with the given secret hash.
func (a *ApiKeyDB) CreateApiKey(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.ApiKey, error) {
	key := &models.ApiKey{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: tokenHash,
		Active:    true,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO api_key (id, user_id, token_hash, active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, key.ID, key.UserID, key.TokenHash, key.Active, key.ExpiresAt, key.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create api key: %w", err)
	}
	return key, nil
}

// GetApiKey retrieves a key by ID.
func (a *ApiKeyDB) GetApiKey(ctx context.Context, id string) (*models.ApiKey, error) {
	key := &models.ApiKey{}
	err := a.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, active, expires_at, created_at, rotated_at
		FROM api_key WHERE id = $1
	`, id).Scan(&key.ID, &key.UserID, &key.TokenHash, &key.Active, &key.ExpiresAt, &key.CreatedAt, &key.RotatedAt)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// CountActiveApiKeys reports how many active keys a user currently holds —
// used to enforce MAX_API_KEYS_PER_USER before issuing a new one.
func (a *ApiKeyDB) CountActiveApiKeys(ctx context.Context, userID string) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM api_key WHERE user_id = $1 AND active = true
	`, userID).Scan(&count)
	return count, err
}

// ListApiKeysForUser lists every key (active or not) belonging to a user.
func (a *ApiKeyDB) ListApiKeysForUser(ctx context.Context, userID string) ([]*models.ApiKey, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, user_id, token_hash, active, expires_at, created_at, rotated_at
		FROM api_key WHERE user_id = $1 ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []*models.ApiKey{}
	for rows.Next() {
		key := &models.ApiKey{}
		if err := rows.Scan(&key.ID, &key.UserID, &key.TokenHash, &key.Active, &key.ExpiresAt, &key.CreatedAt, &key.RotatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan api key row: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api key rows: %w", err)
	}
	return keys, nil
}

// RotateApiKey atomically replaces a key's secret hash and expiry within a
// transaction, so no window exists where both the old and new secret
// validate, or neither does.
func (a *ApiKeyDB) RotateApiKey(ctx context.Context, id, newTokenHash string, newExpiresAt time.Time) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE api_key SET token_hash = $1, expires_at = $2, rotated_at = $3, active = true
		WHERE id = $4
	`, newTokenHash, newExpiresAt, now, id)
	if err != nil {
		return fmt.Errorf("failed to rotate api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}

// DeleteApiKey removes a key's row entirely.
func (a *ApiKeyDB) DeleteApiKey(ctx context.Context, id string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM api_key WHERE id = $1`, id)
	return err
}

// Package db provides PostgreSQL database access for the record repository
// API.
//
// This file implements CRUD for the entitlement table, a composite-key
// (userId, formatId) junction holding an access set.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/recordkeeper/api/internal/models"
)

// EntitlementDB handles database operations for entitlements.
type EntitlementDB struct {
	db *sql.DB
}

// NewEntitlementDB creates a new EntitlementDB instance.
func NewEntitlementDB(db *sql.DB) *EntitlementDB {
	return &EntitlementDB{db: db}
}

// SetEntitlement upserts the access set for (userId, formatId).
func (e *EntitlementDB) SetEntitlement(ctx context.Context, userID string, formatID int64, access []string) (*models.Entitlement, error) {
	ent := &models.Entitlement{
		UserID:    userID,
		FormatID:  formatID,
		Access:    pq.StringArray(access),
		CreatedAt: time.Now(),
	}

	_, err := e.db.ExecContext(ctx, `
		INSERT INTO entitlement (user_id, format_id, access, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, format_id) DO UPDATE SET access = EXCLUDED.access
	`, ent.UserID, ent.FormatID, ent.Access, ent.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to set entitlement: %w", err)
	}
	return ent, nil
}

// GetEntitlement looks up the entitlement for (userId, formatId). Returns
// sql.ErrNoRows if absent — absence means no access for non-superusers.
func (e *EntitlementDB) GetEntitlement(ctx context.Context, userID string, formatID int64) (*models.Entitlement, error) {
	ent := &models.Entitlement{}
	err := e.db.QueryRowContext(ctx, `
		SELECT user_id, format_id, access, created_at
		FROM entitlement WHERE user_id = $1 AND format_id = $2
	`, userID, formatID).Scan(&ent.UserID, &ent.FormatID, &ent.Access, &ent.CreatedAt)
	if err != nil {
		return nil, err
	}
	return ent, nil
}

// ListEntitlementsForUser returns every format a user has an entitlement
// row for.
func (e *EntitlementDB) ListEntitlementsForUser(ctx context.Context, userID string) ([]*models.Entitlement, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT user_id, format_id, access, created_at
		FROM entitlement WHERE user_id = $1 ORDER BY format_id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ents := []*models.Entitlement{}
	for rows.Next() {
		ent := &models.Entitlement{}
		if err := rows.Scan(&ent.UserID, &ent.FormatID, &ent.Access, &ent.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entitlement row: %w", err)
		}
		ents = append(ents, ent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entitlement rows: %w", err)
	}
	return ents, nil
}

// ReadableFormatIDs returns the format IDs a user holds any "read"
// entitlement for — used to filter list endpoints to formats the caller
// may observe.
func (e *EntitlementDB) ReadableFormatIDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT format_id FROM entitlement
		WHERE user_id = $1 AND 'read' = ANY(access)
		ORDER BY format_id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan format id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating format id rows: %w", err)
	}
	return ids, nil
}

// DeleteEntitlement removes the (userId, formatId) row.
func (e *EntitlementDB) DeleteEntitlement(ctx context.Context, userID string, formatID int64) error {
	_, err := e.db.ExecContext(ctx, `
		DELETE FROM entitlement WHERE user_id = $1 AND format_id = $2
	`, userID, formatID)
	return err
}

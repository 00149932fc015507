// Package db provides PostgreSQL database access for the record repository
// API.
//
// This file implements CRUD for the user table.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recordkeeper/api/internal/models"
)

// UserDB handles database operations for users.
type UserDB struct {
	db *sql.DB
}

// NewUserDB creates a new UserDB instance.
func NewUserDB(db *sql.DB) *UserDB {
	return &UserDB{db: db}
}

// CreateUser inserts a new user with an already-hashed password.
func (u *UserDB) CreateUser(ctx context.Context, username, passwordHash string, isSuperuser bool) (*models.User, error) {
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		IsSuperuser:  isSuperuser,
		CreatedAt:    time.Now(),
	}

	_, err := u.db.ExecContext(ctx, `
		INSERT INTO "user" (id, username, password_hash, is_superuser, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Username, user.PasswordHash, user.IsSuperuser, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (u *UserDB) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	err := u.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_superuser, created_at
		FROM "user" WHERE id = $1
	`, userID).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsSuperuser, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username, including its password
// hash — used only for login verification.
func (u *UserDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := u.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_superuser, created_at
		FROM "user" WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsSuperuser, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns all users ordered by username.
func (u *UserDB) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := u.db.QueryContext(ctx, `
		SELECT id, username, password_hash, is_superuser, created_at
		FROM "user" ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsSuperuser, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

// UpdateUser applies a partial update. passwordHash, when non-nil, replaces
// the stored hash (the caller is responsible for hashing it first).
func (u *UserDB) UpdateUser(ctx context.Context, userID string, username *string, passwordHash *string, isSuperuser *bool) error {
	updates := []string{}
	args := []interface{}{}
	argIdx := 1

	if username != nil {
		updates = append(updates, fmt.Sprintf("username = $%d", argIdx))
		args = append(args, *username)
		argIdx++
	}
	if passwordHash != nil {
		updates = append(updates, fmt.Sprintf("password_hash = $%d", argIdx))
		args = append(args, *passwordHash)
		argIdx++
	}
	if isSuperuser != nil {
		updates = append(updates, fmt.Sprintf("is_superuser = $%d", argIdx))
		args = append(args, *isSuperuser)
		argIdx++
	}
	if len(updates) == 0 {
		return nil
	}

	args = append(args, userID)
	query := fmt.Sprintf(`UPDATE "user" SET %s WHERE id = $%d`, join(updates, ", "), argIdx)

	_, err := u.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteUser removes a user. Dependent api_key and entitlement rows cascade;
// a user that still owns format rows cannot be deleted (format.created_by
// has no ON DELETE clause) and the caller sees the resulting foreign-key
// violation surfaced as a storage error.
func (u *UserDB) DeleteUser(ctx context.Context, userID string) error {
	_, err := u.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = $1`, userID)
	return err
}

func join(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for i := 1; i < len(strs); i++ {
		result += sep + strs[i]
	}
	return result
}

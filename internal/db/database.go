// Package db provides PostgreSQL database access for the record repository
// API.
//
// This file implements the core connection and schema lifecycle.
//
// Schema: user, api_key, format, entitlement, upload_session, record — six
// tables, created with plain CREATE TABLE IF NOT EXISTS / CREATE INDEX IF
// NOT EXISTS statements executed in order at startup. No migration-framework
// library is used; none appears anywhere in the reference corpus either.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MinConns              int
	MaxConns              int
	AcquireTimeoutSeconds int
}

// Database wraps the shared connection pool.
type Database struct {
	db             *sql.DB
	acquireTimeout time.Duration
}

// NewDatabase opens a pool against databaseURL (a postgres:// connection
// string) and applies pool bounds from cfg.
func NewDatabase(databaseURL string, cfg PoolConfig) (*Database, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MinConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		db:             sqlDB,
		acquireTimeout: time.Duration(cfg.AcquireTimeoutSeconds) * time.Second,
	}, nil
}

// NewDatabaseForTesting wraps an existing *sql.DB (typically sqlmock) for
// use in tests. Do not use in production code.
func NewDatabaseForTesting(sqlDB *sql.DB) *Database {
	return &Database{db: sqlDB, acquireTimeout: 5 * time.Second}
}

// Close closes the underlying pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying *sql.DB.
func (d *Database) DB() *sql.DB {
	return d.db
}

// AcquireContext wraps ctx with the configured pool-acquire timeout; DB
// calls made within it fail fast rather than queuing indefinitely under
// connection-pool exhaustion.
func (d *Database) AcquireContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d.acquireTimeout)
}

// Migrate creates the schema if it does not already exist.
func (d *Database) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS "user" (
			id VARCHAR(36) PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			is_superuser BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_username ON "user"(username)`,

		`CREATE TABLE IF NOT EXISTS api_key (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES "user"(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			rotated_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_api_key_user_id ON api_key(user_id)`,

		`CREATE TABLE IF NOT EXISTS format (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			schema JSONB NOT NULL,
			created_by VARCHAR(36) NOT NULL REFERENCES "user"(id),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS entitlement (
			user_id VARCHAR(36) NOT NULL REFERENCES "user"(id) ON DELETE CASCADE,
			format_id BIGINT NOT NULL REFERENCES format(id) ON DELETE CASCADE,
			access TEXT[] NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, format_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entitlement_user_format ON entitlement(user_id, format_id)`,

		`CREATE TABLE IF NOT EXISTS upload_session (
			id VARCHAR(36) PRIMARY KEY,
			format_id BIGINT NOT NULL REFERENCES format(id) ON DELETE CASCADE,
			user_id VARCHAR(36) NOT NULL REFERENCES "user"(id),
			record_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_upload_session_user_created ON upload_session(user_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS record (
			id BIGSERIAL PRIMARY KEY,
			format_id BIGINT NOT NULL REFERENCES format(id) ON DELETE CASCADE,
			upload_session_id VARCHAR(36) NOT NULL REFERENCES upload_session(id) ON DELETE CASCADE,
			data JSONB NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_record_format_session ON record(format_id, upload_session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_record_created_at ON record(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

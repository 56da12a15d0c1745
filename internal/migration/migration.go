package migration

import (
	"context"
	"fmt"
	"time"

	"popdash/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Every statement
// is idempotent, so Run is safe on every start.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSchemaVersionTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create schema_version table")
	}

	if err := r.createResponseCacheTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indicator_response_cache table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	if err := r.recordVersion(ctx, db); err != nil {
		return errors.Wrap(err, "failed to record schema version")
	}

	return nil
}

func (r *MigrationRunner) createSchemaVersionTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version VARCHAR(32) PRIMARY KEY,
			applied_at BIGINT NOT NULL
		)
	`)
	return err
}

// Expiry is stored as unix nanoseconds so both drivers compare it the same way.
func (r *MigrationRunner) createResponseCacheTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS indicator_response_cache (
			request_url TEXT PRIMARY KEY,
			body %s NOT NULL,
			fetched_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL
		)
	`, blobType(db.DriverName())))
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_indicator_response_cache_expires
		ON indicator_response_cache (expires_at)
	`)
	return err
}

func (r *MigrationRunner) recordVersion(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO schema_version (version, applied_at)
		VALUES (?, ?)
		ON CONFLICT (version) DO NOTHING
	`), r.version, nowNanos())
	return err
}

func blobType(driver string) string {
	if driver == "postgres" {
		return "BYTEA"
	}
	return "BLOB"
}

var nowNanos = func() int64 { return time.Now().UnixNano() }

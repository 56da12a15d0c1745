package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"popdash/domain/core"
	"popdash/internal/migration"
	"popdash/ports"
)

// ResponseCacheRepository keeps raw API response pages in the
// indicator_response_cache table. Queries are written with ? placeholders
// and rebound for the connected driver.
type ResponseCacheRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ ports.ResponseCache = (*ResponseCacheRepository)(nil)

// NewResponseCacheRepository creates a new response cache repository
func NewResponseCacheRepository(db *sqlx.DB) *ResponseCacheRepository {
	return &ResponseCacheRepository{db: db, now: time.Now}
}

// OpenResponseCache connects with driver ("postgres" or "sqlite3") and runs
// the schema migrations.
func OpenResponseCache(ctx context.Context, driver, dsn string) (*ResponseCacheRepository, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s cache: %w", driver, err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate cache schema: %w", err)
	}
	return NewResponseCacheRepository(db), nil
}

// Get returns the cached body for key, or core.ErrCacheMiss when absent or
// expired.
func (r *ResponseCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	query := r.db.Rebind(`
		SELECT body
		FROM indicator_response_cache
		WHERE request_url = ? AND expires_at > ?`)

	var body []byte
	err := r.db.QueryRowxContext(ctx, query, key, r.now().UnixNano()).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cached response: %w", err)
	}
	return body, nil
}

// neverExpires is stored in expires_at for entries put with ttl <= 0.
const neverExpires int64 = math.MaxInt64

// Put stores body under key until ttl elapses, replacing any previous entry.
// ttl <= 0 never expires.
func (r *ResponseCacheRepository) Put(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	now := r.now()
	expiresAt := neverExpires
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixNano()
	}
	query := r.db.Rebind(`
		INSERT INTO indicator_response_cache (request_url, body, fetched_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (request_url) DO UPDATE SET
			body = EXCLUDED.body,
			fetched_at = EXCLUDED.fetched_at,
			expires_at = EXCLUDED.expires_at`)

	_, err := r.db.ExecContext(ctx, query, key, body, now.UnixNano(), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (r *ResponseCacheRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM indicator_response_cache WHERE expires_at <= ?`), r.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired responses: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database handle.
func (r *ResponseCacheRepository) Close() error {
	return r.db.Close()
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrQuotaExceeded is returned when a write would grow the store past its quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// KV is a durable string key/value store.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Dialect selects the SQL flavour used by SQLKV.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// SQLKV stores keys in the kv_store table.
type SQLKV struct {
	db      *sql.DB
	dialect Dialect
	quota   int64
	now     func() time.Time
}

// NewSQLKV wraps db. A quota of zero or less disables the size check.
func NewSQLKV(db *sql.DB, dialect Dialect, quota int64) *SQLKV {
	return &SQLKV{
		db:      db,
		dialect: dialect,
		quota:   quota,
		now:     time.Now,
	}
}

// EnsureSchema creates the kv_store table if it does not exist.
func (s *SQLKV) EnsureSchema(ctx context.Context) error {
	var stmt string
	switch s.dialect {
	case DialectMySQL:
		stmt = `CREATE TABLE IF NOT EXISTS kv_store (
			k VARCHAR(191) NOT NULL PRIMARY KEY,
			v LONGTEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`
	default:
		stmt = `CREATE TABLE IF NOT EXISTS kv_store (
			k TEXT NOT NULL PRIMARY KEY,
			v TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create kv_store: %w", err)
	}
	return nil
}

func (s *SQLKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT v FROM kv_store WHERE k = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLKV) Set(ctx context.Context, key, value string) error {
	if s.quota > 0 {
		var used int64
		err := s.db.QueryRowContext(ctx,
			"SELECT COALESCE(SUM("+s.byteLength("k")+" + "+s.byteLength("v")+"), 0) FROM kv_store WHERE k <> ?", key).Scan(&used)
		if err != nil {
			return fmt.Errorf("failed to measure store usage: %w", err)
		}
		if used+int64(len(key)+len(value)) > s.quota {
			return ErrQuotaExceeded
		}
	}

	var stmt string
	switch s.dialect {
	case DialectMySQL:
		stmt = `INSERT INTO kv_store (k, v, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE v = VALUES(v), updated_at = VALUES(updated_at)`
	default:
		stmt = `INSERT INTO kv_store (k, v, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at = excluded.updated_at`
	}
	if _, err := s.db.ExecContext(ctx, stmt, key, value, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// byteLength is the SQL expression for the size of col in bytes, matching
// len() on the Go side. SQLite's LENGTH counts characters on TEXT.
func (s *SQLKV) byteLength(col string) string {
	if s.dialect == DialectMySQL {
		return "OCTET_LENGTH(" + col + ")"
	}
	return "LENGTH(CAST(" + col + " AS BLOB))"
}

func (s *SQLKV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_store WHERE k = ?", key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Package sqlite implements the driven storage ports on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Pool sizes. All writes go through one connection so write transactions
// queue instead of failing with SQLITE_BUSY.
const (
	writerConns = 1
	readerConns = 4
)

// connPragmas are applied to every connection in both pools.
var connPragmas = []string{
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"cache_size(-64000)",
}

// DB pairs a single-connection writer pool with a small reader pool over the
// same database file.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
}

// NewDB opens the telemetry database at dbPath in WAL mode.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	return open(ctx, buildDSN(dbPath, "_pragma=journal_mode(WAL)"))
}

// buildDSN renders a modernc file URI for name. extra query parameters come
// before the shared connection pragmas.
func buildDSN(name string, extra ...string) string {
	params := slices.Clone(extra)
	for _, p := range connPragmas {
		params = append(params, "_pragma="+p)
	}
	return "file:" + name + "?" + strings.Join(params, "&")
}

func open(ctx context.Context, dsn string) (*DB, error) {
	writer, err := openPool(ctx, dsn, writerConns)
	if err != nil {
		return nil, fmt.Errorf("writer pool: %w", err)
	}

	reader, err := openPool(ctx, dsn, readerConns)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("reader pool: %w", err)
	}

	return &DB{Writer: writer, Reader: reader}, nil
}

func openPool(ctx context.Context, dsn string, conns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	pool.SetMaxOpenConns(conns)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Close releases both pools.
func (db *DB) Close() error {
	rerr := db.Reader.Close()
	werr := db.Writer.Close()
	if rerr != nil {
		return fmt.Errorf("close reader: %w", rerr)
	}
	if werr != nil {
		return fmt.Errorf("close writer: %w", werr)
	}
	return nil
}

// withTx runs fn inside a writer transaction, committing on success and
// rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// unixOrNull converts t to unix seconds, mapping the zero time to NULL.
func unixOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Unix()
}

// fromUnix converts a nullable unix seconds column back to a UTC time.
func fromUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}

package sqlite

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// setupTestDB returns a migrated in-memory database private to t. Both pools
// see the same data through cache=shared; WAL does not apply in memory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := buildDSN(url.PathEscape(t.Name()), "mode=memory", "cache=shared")
	db, err := open(context.Background(), dsn)
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { _ = db.Close() })

	_, err = RunMigrations(db.Writer)
	require.NoError(t, err, "run migrations")

	return db
}

// testKey is a fixed 32-byte AES-256 key for credential tests.
var testKey = []byte("0123456789abcdef0123456789abcdef")

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Reader.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

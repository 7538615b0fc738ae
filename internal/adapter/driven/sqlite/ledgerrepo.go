package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LedgerStore = (*LedgerRepo)(nil)

// LedgerRepo is the SQLite implementation of the LedgerStore port. The
// processing row is guarded both by the insert predicate and by a partial
// unique index, so two processes racing on Acquire cannot both succeed.
type LedgerRepo struct {
	db  *DB
	now func() time.Time
}

// NewLedgerRepo creates a new LedgerRepo backed by the given DB.
func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db, now: time.Now}
}

// Acquire inserts the processing row for runID if no other processing row exists.
func (r *LedgerRepo) Acquire(ctx context.Context, runID time.Time, truncate bool) error {
	const query = `
		INSERT INTO refresh_ledger (run_id, refresh_method, truncate, created_at)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM refresh_ledger WHERE refresh_method = ?)
	`

	res, err := r.db.Writer.ExecContext(ctx, query,
		runKey(runID), string(model.RefreshMethodProcessing), boolToInt(truncate), r.now().UTC().Unix(),
		string(model.RefreshMethodProcessing),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return driven.ErrLockHeld
		}
		return fmt.Errorf("acquire refresh lock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire refresh lock: %w", err)
	}
	if n == 0 {
		return driven.ErrLockHeld
	}
	return nil
}

// IsLocked reports whether a processing row exists.
func (r *LedgerRepo) IsLocked(ctx context.Context) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM refresh_ledger WHERE refresh_method = ?)`
	var exists int
	if err := r.db.Reader.QueryRowContext(ctx, query, string(model.RefreshMethodProcessing)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check refresh lock: %w", err)
	}
	return exists == 1, nil
}

// SetStatus records the provider's status on the in-flight run.
func (r *LedgerRepo) SetStatus(ctx context.Context, runID time.Time, provider model.ProviderID, status string) error {
	column, err := statusColumn(provider)
	if err != nil {
		return err
	}

	query := `UPDATE refresh_ledger SET ` + column + ` = ? WHERE run_id = ? AND refresh_method = ?`
	res, err := r.db.Writer.ExecContext(ctx, query, status, runKey(runID), string(model.RefreshMethodProcessing))
	if err != nil {
		return fmt.Errorf("set %s status: %w", provider, err)
	}
	return expectOneRow(res, "set "+provider.String()+" status")
}

// Finalize converts the processing row into a permanent audit row.
func (r *LedgerRepo) Finalize(ctx context.Context, runID time.Time, method model.RefreshMethod) error {
	if method != model.RefreshMethodSystem && method != model.RefreshMethodManual {
		return fmt.Errorf("finalize run: invalid refresh method %q", method)
	}

	const query = `UPDATE refresh_ledger SET refresh_method = ? WHERE run_id = ? AND refresh_method = ?`
	res, err := r.db.Writer.ExecContext(ctx, query, string(method), runKey(runID), string(model.RefreshMethodProcessing))
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	return expectOneRow(res, "finalize run")
}

// Release deletes the processing row for runID. Releasing an already
// released run is not an error.
func (r *LedgerRepo) Release(ctx context.Context, runID time.Time) error {
	const query = `DELETE FROM refresh_ledger WHERE run_id = ? AND refresh_method = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, runKey(runID), string(model.RefreshMethodProcessing)); err != nil {
		return fmt.Errorf("release refresh lock: %w", err)
	}
	return nil
}

// Latest returns the newest completed run, or (nil, nil) when there is none.
func (r *LedgerRepo) Latest(ctx context.Context) (*model.LedgerEntry, error) {
	query := selectLedger + ` WHERE refresh_method != ? ORDER BY run_id DESC LIMIT 1`

	entry, err := scanLedger(r.db.Reader.QueryRowContext(ctx, query, string(model.RefreshMethodProcessing)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest refresh: %w", err)
	}
	return entry, nil
}

// List returns up to limit ledger entries, newest first, including an
// in-flight processing row if one exists.
func (r *LedgerRepo) List(ctx context.Context, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Reader.QueryContext(ctx, selectLedger+` ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list refresh ledger: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		entry, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refresh ledger: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh ledger: %w", err)
	}
	return entries, nil
}

const selectLedger = `
	SELECT run_id, refresh_method, truncate,
	       activity_status, readiness_status, bodycomp_status, strength_status,
	       created_at
	FROM refresh_ledger`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedger(row rowScanner) (*model.LedgerEntry, error) {
	var (
		runID     int64
		method    string
		truncate  int
		activity  sql.NullString
		readiness sql.NullString
		bodycomp  sql.NullString
		strength  sql.NullString
		createdAt int64
	)
	if err := row.Scan(&runID, &method, &truncate, &activity, &readiness, &bodycomp, &strength, &createdAt); err != nil {
		return nil, err
	}

	m, err := model.ParseRefreshMethod(method)
	if err != nil {
		return nil, fmt.Errorf("scanning ledger row %d: %w", runID, err)
	}

	statuses := make(map[model.ProviderID]string, len(model.AllProviders))
	for provider, v := range map[model.ProviderID]sql.NullString{
		model.ProviderActivity:        activity,
		model.ProviderReadiness:       readiness,
		model.ProviderBodyComposition: bodycomp,
		model.ProviderStrength:        strength,
	} {
		if v.Valid {
			statuses[provider] = v.String
		}
	}

	return &model.LedgerEntry{
		RunID:     time.UnixMicro(runID).UTC(),
		Method:    m,
		Truncate:  truncate != 0,
		Statuses:  statuses,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}, nil
}

// statusColumn maps a provider to its ledger status column.
func statusColumn(provider model.ProviderID) (string, error) {
	switch provider {
	case model.ProviderActivity:
		return "activity_status", nil
	case model.ProviderReadiness:
		return "readiness_status", nil
	case model.ProviderBodyComposition:
		return "bodycomp_status", nil
	case model.ProviderStrength:
		return "strength_status", nil
	default:
		return "", fmt.Errorf("no ledger column for provider %q", provider)
	}
}

// runKey is the ledger primary key for a run start time.
func runKey(runID time.Time) int64 {
	return runID.UTC().UnixMicro()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n != 1 {
		return fmt.Errorf("%s: no in-flight run matched", op)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

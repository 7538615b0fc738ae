package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DatasetStore = (*DatasetRepo)(nil)

// windowedTable is a provider-owned table and the column its window is keyed on.
// Child tables carry their parent's key so a window never splits a parent
// from its samples.
type windowedTable struct {
	name   string
	column string
}

// providerTables lists the tables each provider owns. The first entry is the
// summary table the high-water-mark is computed from.
var providerTables = map[model.ProviderID][]windowedTable{
	model.ProviderActivity: {
		{name: "activity_summary", column: "start_time"},
		{name: "activity_samples", column: "activity_start"},
	},
	model.ProviderReadiness: {
		{name: "readiness_summary", column: "day"},
		{name: "sleep_summary", column: "day"},
		{name: "sleep_samples", column: "day"},
	},
	model.ProviderBodyComposition: {
		{name: "body_composition", column: "measured_at"},
	},
	model.ProviderStrength: {
		{name: "strength_sets", column: "performed_at"},
	},
}

// DatasetRepo is the SQLite implementation of the DatasetStore port.
type DatasetRepo struct {
	db *DB
}

// NewDatasetRepo creates a new DatasetRepo backed by the given DB.
func NewDatasetRepo(db *DB) *DatasetRepo {
	return &DatasetRepo{db: db}
}

// HighWaterMark returns max(key) of the provider's summary table.
func (r *DatasetRepo) HighWaterMark(ctx context.Context, provider model.ProviderID) (time.Time, bool, error) {
	tables, err := tablesFor(provider)
	if err != nil {
		return time.Time{}, false, err
	}
	summary := tables[0]

	query := `SELECT MAX(` + summary.column + `) FROM ` + summary.name
	var hwm sql.NullInt64
	if err := r.db.Reader.QueryRowContext(ctx, query).Scan(&hwm); err != nil {
		return time.Time{}, false, fmt.Errorf("high-water-mark %s: %w", provider, err)
	}
	if !hwm.Valid {
		return time.Time{}, false, nil
	}
	return fromUnix(hwm), true, nil
}

// ReplaceWindow deletes the provider's rows at or after start and inserts ds
// in one transaction.
func (r *DatasetRepo) ReplaceWindow(ctx context.Context, provider model.ProviderID, start time.Time, ds model.Dataset) error {
	tables, err := tablesFor(provider)
	if err != nil {
		return err
	}
	if ds.IsEmpty() {
		return nil
	}

	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tables {
			query := `DELETE FROM ` + t.name + ` WHERE ` + t.column + ` >= ?`
			if _, err := tx.ExecContext(ctx, query, start.UTC().Unix()); err != nil {
				return fmt.Errorf("delete %s window: %w", t.name, err)
			}
		}

		if err := insertDataset(ctx, tx, provider, ds); err != nil {
			return err
		}
		return nil
	})
}

// Truncate deletes rows from every provider table in one transaction.
func (r *DatasetRepo) Truncate(ctx context.Context, after *time.Time) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		for _, provider := range model.AllProviders {
			for _, t := range providerTables[provider] {
				var err error
				if after == nil {
					_, err = tx.ExecContext(ctx, `DELETE FROM `+t.name)
				} else {
					_, err = tx.ExecContext(ctx, `DELETE FROM `+t.name+` WHERE `+t.column+` >= ?`, after.UTC().Unix())
				}
				if err != nil {
					return fmt.Errorf("truncate %s: %w", t.name, err)
				}
			}
		}
		return nil
	})
}

// LatestReadinessDay returns the newest readiness report day.
func (r *DatasetRepo) LatestReadinessDay(ctx context.Context) (time.Time, bool, error) {
	var day sql.NullInt64
	if err := r.db.Reader.QueryRowContext(ctx, `SELECT MAX(day) FROM readiness_summary`).Scan(&day); err != nil {
		return time.Time{}, false, fmt.Errorf("latest readiness day: %w", err)
	}
	if !day.Valid {
		return time.Time{}, false, nil
	}
	return fromUnix(day), true, nil
}

// LatestRestingHeartRate returns the lowest heart rate of the newest sleep
// that recorded one.
func (r *DatasetRepo) LatestRestingHeartRate(ctx context.Context) (int, bool, error) {
	const query = `
		SELECT lowest_heart_rate FROM sleep_summary
		WHERE lowest_heart_rate > 0
		ORDER BY day DESC, bedtime_start DESC
		LIMIT 1
	`
	var bpm int
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&bpm)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("latest resting heart rate: %w", err)
	}
	return bpm, true, nil
}

// RowCounts returns the number of rows in every provider table.
func (r *DatasetRepo) RowCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, provider := range model.AllProviders {
		for _, t := range providerTables[provider] {
			var n int64
			if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+t.name).Scan(&n); err != nil {
				return nil, fmt.Errorf("count %s: %w", t.name, err)
			}
			counts[t.name] = n
		}
	}
	return counts, nil
}

func tablesFor(provider model.ProviderID) ([]windowedTable, error) {
	tables, ok := providerTables[provider]
	if !ok {
		return nil, fmt.Errorf("no tables for provider %q", provider)
	}
	return tables, nil
}

// insertDataset writes the slices that belong to provider. Rows of other
// providers are ignored.
func insertDataset(ctx context.Context, tx *sql.Tx, provider model.ProviderID, ds model.Dataset) error {
	switch provider {
	case model.ProviderActivity:
		return insertActivity(ctx, tx, ds)
	case model.ProviderReadiness:
		return insertReadiness(ctx, tx, ds)
	case model.ProviderBodyComposition:
		return insertBodyComposition(ctx, tx, ds)
	case model.ProviderStrength:
		return insertStrength(ctx, tx, ds)
	default:
		return fmt.Errorf("no tables for provider %q", provider)
	}
}

func insertActivity(ctx context.Context, tx *sql.Tx, ds model.Dataset) error {
	summary, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO activity_summary (
			activity_id, start_time, activity_type, name, elapsed_seconds,
			distance_meters, average_hr, max_hr, average_watts, calories
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare activity_summary insert: %w", err)
	}
	defer summary.Close()

	for _, a := range ds.Activities {
		if _, err := summary.ExecContext(ctx,
			a.ActivityID, a.StartTime.UTC().Unix(), a.Type, a.Name, a.ElapsedSeconds,
			a.DistanceMeters, a.AverageHR, a.MaxHR, a.AverageWatts, a.Calories,
		); err != nil {
			return fmt.Errorf("insert activity %d: %w", a.ActivityID, err)
		}
	}

	samples, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO activity_samples (
			activity_id, activity_start, timestamp, heart_rate, watts, hr_zone
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare activity_samples insert: %w", err)
	}
	defer samples.Close()

	for _, s := range ds.ActivitySamples {
		if _, err := samples.ExecContext(ctx,
			s.ActivityID, s.ActivityStart.UTC().Unix(), s.Timestamp.UTC().Unix(), s.HeartRate, s.Watts, s.HRZone,
		); err != nil {
			return fmt.Errorf("insert sample for activity %d: %w", s.ActivityID, err)
		}
	}
	return nil
}

func insertReadiness(ctx context.Context, tx *sql.Tx, ds model.Dataset) error {
	for _, rd := range ds.Readiness {
		const query = `
			INSERT OR REPLACE INTO readiness_summary (day, score, hrv_balance, resting_hr_score, temperature_deviation)
			VALUES (?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query,
			rd.Day.UTC().Unix(), rd.Score, rd.HRVBalance, rd.RestingHRScore, rd.TemperatureDeviation,
		); err != nil {
			return fmt.Errorf("insert readiness %s: %w", rd.Day.Format(time.DateOnly), err)
		}
	}

	for _, sl := range ds.Sleep {
		const query = `
			INSERT OR REPLACE INTO sleep_summary (
				day, bedtime_start, bedtime_end, total_sleep_seconds, efficiency, lowest_heart_rate, average_hrv
			) VALUES (?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query,
			sl.Day.UTC().Unix(), sl.BedtimeStart.UTC().Unix(), unixOrNull(sl.BedtimeEnd),
			sl.TotalSleepSeconds, sl.Efficiency, sl.LowestHeartRate, sl.AverageHRV,
		); err != nil {
			return fmt.Errorf("insert sleep %s: %w", sl.Day.Format(time.DateOnly), err)
		}
	}

	samples, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO sleep_samples (day, timestamp, stage) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sleep_samples insert: %w", err)
	}
	defer samples.Close()

	for _, s := range ds.SleepSamples {
		if _, err := samples.ExecContext(ctx, s.Day.UTC().Unix(), s.Timestamp.UTC().Unix(), string(s.Stage)); err != nil {
			return fmt.Errorf("insert sleep sample: %w", err)
		}
	}
	return nil
}

func insertBodyComposition(ctx context.Context, tx *sql.Tx, ds model.Dataset) error {
	const query = `
		INSERT OR REPLACE INTO body_composition (
			measured_at, weight_kg, fat_ratio, muscle_mass_kg, bone_mass_kg, hydration_kg
		) VALUES (?, ?, ?, ?, ?, ?)`
	for _, b := range ds.BodyCompositions {
		if _, err := tx.ExecContext(ctx, query,
			b.MeasuredAt.UTC().Unix(), b.WeightKg, b.FatRatio, b.MuscleMassKg, b.BoneMassKg, b.HydrationKg,
		); err != nil {
			return fmt.Errorf("insert body composition: %w", err)
		}
	}
	return nil
}

func insertStrength(ctx context.Context, tx *sql.Tx, ds model.Dataset) error {
	const query = `
		INSERT OR REPLACE INTO strength_sets (
			workout_id, set_index, performed_at, exercise, reps, weight_kg
		) VALUES (?, ?, ?, ?, ?, ?)`
	for _, s := range ds.StrengthSets {
		if _, err := tx.ExecContext(ctx, query,
			s.WorkoutID, s.SetIndex, s.PerformedAt.UTC().Unix(), s.Exercise, s.Reps, s.WeightKg,
		); err != nil {
			return fmt.Errorf("insert strength set %s/%d: %w", s.WorkoutID, s.SetIndex, err)
		}
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AthleteStore = (*AthleteRepo)(nil)

// AthleteRepo is the SQLite implementation of the AthleteStore port. The
// profile lives in a single row with id 1.
type AthleteRepo struct {
	db *DB
}

// NewAthleteRepo creates a new AthleteRepo backed by the given DB.
func NewAthleteRepo(db *DB) *AthleteRepo {
	return &AthleteRepo{db: db}
}

// Get returns the stored profile, or (nil, nil) if none has been saved.
func (r *AthleteRepo) Get(ctx context.Context) (*model.Athlete, error) {
	const query = `
		SELECT name, birthdate, sex, weight_kg, resting_hr, run_ftp, ride_ftp, updated_at
		FROM athlete WHERE id = 1
	`

	var (
		a         model.Athlete
		birthdate sql.NullInt64
		updatedAt int64
	)
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(
		&a.Name, &birthdate, &a.Sex, &a.WeightKg, &a.RestingHR, &a.RunFTP, &a.RideFTP, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get athlete: %w", err)
	}

	a.Birthdate = fromUnix(birthdate)
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &a, nil
}

// Save inserts or replaces the profile.
func (r *AthleteRepo) Save(ctx context.Context, a model.Athlete) error {
	const query = `
		INSERT INTO athlete (id, name, birthdate, sex, weight_kg, resting_hr, run_ftp, ride_ftp, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			birthdate = excluded.birthdate,
			sex = excluded.sex,
			weight_kg = excluded.weight_kg,
			resting_hr = excluded.resting_hr,
			run_ftp = excluded.run_ftp,
			ride_ftp = excluded.ride_ftp,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		a.Name, unixOrNull(a.Birthdate), a.Sex, a.WeightKg, a.RestingHR, a.RunFTP, a.RideFTP,
		time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save athlete: %w", err)
	}
	return nil
}

package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"beacon/internal/domain/model"
)

// PostgresEventRecorder persists inferred vital events. Uniqueness is
// enforced by the database: one mortality per cat, one birth per
// (mother, source record). Conflicting inserts are silently skipped, which
// is what makes extraction re-runs idempotent at the storage boundary too.
type PostgresEventRecorder struct {
	db *sqlx.DB
}

// NewPostgresEventRecorder wraps an existing connection pool.
func NewPostgresEventRecorder(db *sqlx.DB) *PostgresEventRecorder {
	return &PostgresEventRecorder{db: db}
}

// EnsureSchema creates the event tables if they do not exist. The unique
// constraints here are what the idempotent upserts conflict against.
func (r *PostgresEventRecorder) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS birth_events (
			id               UUID PRIMARY KEY,
			mother_id        BIGINT NOT NULL,
			date             TIMESTAMPTZ NOT NULL,
			precision        TEXT NOT NULL,
			source_system    TEXT NOT NULL,
			source_record_id BIGINT NOT NULL,
			notes            TEXT NOT NULL DEFAULT '',
			UNIQUE (mother_id, source_record_id)
		);
		CREATE TABLE IF NOT EXISTS mortality_events (
			id               UUID PRIMARY KEY,
			cat_id           BIGINT NOT NULL UNIQUE,
			date             TIMESTAMPTZ NOT NULL,
			precision        TEXT NOT NULL,
			cause            TEXT NOT NULL,
			source_system    TEXT NOT NULL,
			source_record_id BIGINT NOT NULL,
			notes            TEXT NOT NULL DEFAULT ''
		);`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "ensuring vital event tables")
	}
	return nil
}

// RecordedEvents loads every stored vital event, the idempotency baseline
// for the next extraction run.
func (r *PostgresEventRecorder) RecordedEvents(ctx context.Context) (model.VitalEvents, error) {
	var events model.VitalEvents

	const birthQuery = `
		SELECT id, mother_id, date, precision, source_system, source_record_id, notes
		FROM birth_events`
	if err := r.db.SelectContext(ctx, &events.Births, birthQuery); err != nil {
		return model.VitalEvents{}, errors.Wrap(err, "querying birth events")
	}

	const mortalityQuery = `
		SELECT id, cat_id, date, precision, cause, source_system, source_record_id, notes
		FROM mortality_events`
	if err := r.db.SelectContext(ctx, &events.Mortalities, mortalityQuery); err != nil {
		return model.VitalEvents{}, errors.Wrap(err, "querying mortality events")
	}

	return events, nil
}

// SaveBirths inserts new birth events, skipping any that collide with an
// already-recorded litter for the same mother and source appointment.
func (r *PostgresEventRecorder) SaveBirths(ctx context.Context, births []model.BirthEvent) error {
	const query = `
		INSERT INTO birth_events (id, mother_id, date, precision, source_system, source_record_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mother_id, source_record_id) DO NOTHING`

	for _, b := range births {
		if _, err := r.db.ExecContext(ctx, query,
			b.ID, b.MotherID, b.Date, b.Precision, b.SourceSystem, b.SourceRecordID, b.Notes,
		); err != nil {
			return errors.Wrapf(err, "inserting birth event for mother %d", b.MotherID)
		}
	}
	return nil
}

// SaveMortalities inserts new mortality events, skipping any cat that
// already has one.
func (r *PostgresEventRecorder) SaveMortalities(ctx context.Context, mortalities []model.MortalityEvent) error {
	const query = `
		INSERT INTO mortality_events (id, cat_id, date, precision, cause, source_system, source_record_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cat_id) DO NOTHING`

	for _, m := range mortalities {
		if _, err := r.db.ExecContext(ctx, query,
			m.ID, m.CatID, m.Date, m.Precision, m.Cause, m.SourceSystem, m.SourceRecordID, m.Notes,
		); err != nil {
			return errors.Wrapf(err, "inserting mortality event for cat %d", m.CatID)
		}
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"beacon/internal/domain/model"
)

// PostgresStore reads places, colony estimates and clinical appointments
// from the organization's Postgres database. It satisfies
// core.ObservationStore; the engine never writes to these tables.
type PostgresStore struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
}

// NewPostgresStore connects to Postgres. A nil logger disables logging.
func NewPostgresStore(connStr string, log *zap.SugaredLogger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	return &PostgresStore{db: db, log: log}, nil
}

// DB exposes the underlying handle so sibling repositories can share the
// connection pool.
func (s *PostgresStore) DB() *sqlx.DB {
	return s.db
}

type placeRow struct {
	ID         int64           `db:"id"`
	Name       string          `db:"name"`
	Latitude   sql.NullFloat64 `db:"latitude"`
	Longitude  sql.NullFloat64 `db:"longitude"`
	ColonyType sql.NullString  `db:"colony_type"`
}

// ListPlaces returns every place in the registry. Coordinates stay nil for
// places not yet geocoded.
func (s *PostgresStore) ListPlaces(ctx context.Context) ([]model.Place, error) {
	const query = `
		SELECT id, name, latitude, longitude, colony_type
		FROM places
		ORDER BY id`

	var rows []placeRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying places")
	}

	places := make([]model.Place, 0, len(rows))
	for _, r := range rows {
		p := model.Place{
			ID:         r.ID,
			Name:       r.Name,
			ColonyType: model.ColonyUnknown,
		}
		if r.ColonyType.Valid {
			p.ColonyType = model.ColonyType(r.ColonyType.String)
		}
		if r.Latitude.Valid && r.Longitude.Valid {
			p.Coordinate = &model.Coordinate{Lat: r.Latitude.Float64, Lon: r.Longitude.Float64}
		}
		places = append(places, p)
	}
	return places, nil
}

type estimateRow struct {
	ID           int64          `db:"id"`
	PlaceID      int64          `db:"place_id"`
	TotalCats    sql.NullInt64  `db:"total_cats"`
	AlteredCount sql.NullInt64  `db:"altered_count"`
	KittenCount  sql.NullInt64  `db:"kitten_count"`
	SourceType   string         `db:"source_type"`
	ObservedAt   sql.NullTime   `db:"observation_date"`
	CreatedAt    time.Time      `db:"created_at"`
	Notes        sql.NullString `db:"notes"`
}

// ListEstimates fetches the full estimate history for the given places in a
// single query, grouped by place. Unknown source types are logged and kept
// as unranked, never dropped.
func (s *PostgresStore) ListEstimates(ctx context.Context, placeIDs []int64) (map[int64][]model.ColonyEstimate, error) {
	const query = `
		SELECT id, place_id, total_cats, altered_count, kitten_count,
		       source_type, observation_date, created_at, notes
		FROM colony_estimates
		WHERE place_id = ANY($1)
		ORDER BY place_id, created_at`

	var rows []estimateRow
	if err := s.db.SelectContext(ctx, &rows, query, pq.Int64Array(placeIDs)); err != nil {
		return nil, errors.Wrap(err, "querying colony estimates")
	}

	byPlace := make(map[int64][]model.ColonyEstimate, len(placeIDs))
	for _, r := range rows {
		source, known := model.ParseSourceType(r.SourceType)
		if !known && s.log != nil {
			s.log.Warnw("Unknown estimate source type, treating as unranked",
				"estimate_id", r.ID, "source_type", r.SourceType)
		}
		est := model.ColonyEstimate{
			ID:        r.ID,
			PlaceID:   r.PlaceID,
			Source:    source,
			CreatedAt: r.CreatedAt,
			Notes:     r.Notes.String,
		}
		if r.TotalCats.Valid {
			v := int(r.TotalCats.Int64)
			est.TotalCats = &v
		}
		if r.AlteredCount.Valid {
			v := int(r.AlteredCount.Int64)
			est.AlteredCount = &v
		}
		if r.KittenCount.Valid {
			v := int(r.KittenCount.Int64)
			est.KittenCount = &v
		}
		if r.ObservedAt.Valid {
			t := r.ObservedAt.Time
			est.ObservedAt = &t
		}
		byPlace[r.PlaceID] = append(byPlace[r.PlaceID], est)
	}
	return byPlace, nil
}

type appointmentRow struct {
	ID           int64          `db:"id"`
	CatID        int64          `db:"cat_id"`
	Date         time.Time      `db:"date"`
	MedicalNotes sql.NullString `db:"medical_notes"`
	Pregnant     bool           `db:"pregnant"`
	Lactating    bool           `db:"lactating"`
}

// ListAppointments returns clinical appointments on or after since.
func (s *PostgresStore) ListAppointments(ctx context.Context, since time.Time) ([]model.Appointment, error) {
	const query = `
		SELECT id, cat_id, date, medical_notes, pregnant, lactating
		FROM appointments
		WHERE date >= $1
		ORDER BY date`

	var rows []appointmentRow
	if err := s.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, errors.Wrap(err, "querying appointments")
	}

	appointments := make([]model.Appointment, 0, len(rows))
	for _, r := range rows {
		appointments = append(appointments, model.Appointment{
			ID:           r.ID,
			CatID:        r.CatID,
			Date:         r.Date,
			MedicalNotes: r.MedicalNotes.String,
			Pregnant:     r.Pregnant,
			Lactating:    r.Lactating,
		})
	}
	return appointments, nil
}

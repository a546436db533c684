package core

import (
	"context"
	"time"

	"beacon/internal/domain/model"
)

// ObservationStore is the bulk read contract the surrounding application
// satisfies, whether over a database query layer or an HTTP data-access
// API. Reads are batched; per-place round trips are a bug, not a style
// choice.
type ObservationStore interface {
	ListPlaces(ctx context.Context) ([]model.Place, error)
	ListEstimates(ctx context.Context, placeIDs []int64) (map[int64][]model.ColonyEstimate, error)
	ListAppointments(ctx context.Context, since time.Time) ([]model.Appointment, error)
}

// EventRecorder persists inferred vital events. Implementations must be
// idempotent: at most one mortality per cat, at most one birth per
// (mother, source appointment).
type EventRecorder interface {
	RecordedEvents(ctx context.Context) (model.VitalEvents, error)
	SaveBirths(ctx context.Context, births []model.BirthEvent) error
	SaveMortalities(ctx context.Context, mortalities []model.MortalityEvent) error
}

// SiteContextProvider annotates a coordinate with nearby mapped features,
// used to give work clusters feeding-site context.
type SiteContextProvider interface {
	NearbyFeatures(ctx context.Context, c model.Coordinate, radiusM float64) ([]model.SiteFeature, error)
}

package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/config"
	"beacon/internal/domain/model"
)

type fakeStore struct {
	places       []model.Place
	estimates    map[int64][]model.ColonyEstimate
	appointments []model.Appointment

	estimateCalls int
}

func (f *fakeStore) ListPlaces(ctx context.Context) ([]model.Place, error) {
	return f.places, nil
}

func (f *fakeStore) ListEstimates(ctx context.Context, placeIDs []int64) (map[int64][]model.ColonyEstimate, error) {
	f.estimateCalls++
	out := make(map[int64][]model.ColonyEstimate, len(placeIDs))
	for _, id := range placeIDs {
		out[id] = f.estimates[id]
	}
	return out, nil
}

func (f *fakeStore) ListAppointments(ctx context.Context, since time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appointments {
		if !a.Date.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeRecorder struct {
	events model.VitalEvents
}

func (f *fakeRecorder) RecordedEvents(ctx context.Context) (model.VitalEvents, error) {
	return f.events, nil
}

func (f *fakeRecorder) SaveBirths(ctx context.Context, births []model.BirthEvent) error {
	f.events.Births = append(f.events.Births, births...)
	return nil
}

func (f *fakeRecorder) SaveMortalities(ctx context.Context, mortalities []model.MortalityEvent) error {
	f.events.Mortalities = append(f.events.Mortalities, mortalities...)
	return nil
}

func newTestService(store *fakeStore, recorder *fakeRecorder) *Service {
	s := NewService(store, recorder, nil, config.Default(), nil)
	s.now = func() time.Time { return testNow }
	return s
}

func TestServiceEstimate(t *testing.T) {
	recent := testNow.AddDate(0, -1, 0)
	store := &fakeStore{
		estimates: map[int64][]model.ColonyEstimate{
			1: {
				estimate(1, model.SourceVerifiedCats, nil, intp(12), recent),
				estimate(2, model.SourcePostClinicSurvey, intp(9), intp(6), recent),
			},
		},
	}
	svc := newTestService(store, &fakeRecorder{})
	ctx := context.Background()

	stats, err := svc.Estimate(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 17, *stats.BestColonyEstimate)
	assert.Equal(t, model.StatusInProgress, svc.Classify(stats))

	t.Run("second read is served from cache", func(t *testing.T) {
		calls := store.estimateCalls
		_, err := svc.Estimate(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, calls, store.estimateCalls)
	})

	t.Run("no_data result is cached too", func(t *testing.T) {
		stats, err := svc.Estimate(ctx, 99)
		require.NoError(t, err)
		assert.Nil(t, stats)

		calls := store.estimateCalls
		stats, err = svc.Estimate(ctx, 99)
		require.NoError(t, err)
		assert.Nil(t, stats)
		assert.Equal(t, calls, store.estimateCalls)
	})

	t.Run("invalidation forces a recompute", func(t *testing.T) {
		svc.InvalidatePlace(1)
		calls := store.estimateCalls
		_, err := svc.Estimate(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, calls+1, store.estimateCalls)
	})
}

func TestServiceEstimateAll(t *testing.T) {
	recent := testNow.AddDate(0, -1, 0)
	store := &fakeStore{
		places: []model.Place{{ID: 1}, {ID: 2}, {ID: 3}},
		estimates: map[int64][]model.ColonyEstimate{
			1: {estimate(1, model.SourcePostClinicSurvey, intp(10), intp(8), recent)},
			2: {estimate(2, model.SourcePostClinicSurvey, intp(20), intp(2), recent)},
		},
	}
	svc := newTestService(store, &fakeRecorder{})

	results, err := svc.EstimateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, store.estimateCalls, "the estimate history must be fetched in one batch")
	assert.NotNil(t, results[1])
	assert.NotNil(t, results[2])
	assert.Nil(t, results[3], "a place without observations is no_data")

	assert.Equal(t, model.StatusManaged, svc.Classify(results[1]))
	assert.Equal(t, model.StatusNeedsAttention, svc.Classify(results[2]))
}

func TestServiceCluster(t *testing.T) {
	store := &fakeStore{places: clusterFixture()}
	svc := newTestService(store, &fakeRecorder{})
	ctx := context.Background()

	clusters, err := svc.Cluster(ctx, 100, 2, false)
	require.NoError(t, err)
	assert.Len(t, clusters, 2)

	t.Run("degenerate parameters return empty, not an error", func(t *testing.T) {
		clusters, err := svc.Cluster(ctx, -1, 2, false)
		require.NoError(t, err)
		assert.Empty(t, clusters)

		clusters, err = svc.Cluster(ctx, 100, 0, false)
		require.NoError(t, err)
		assert.Empty(t, clusters)
	})
}

func TestServiceExtractVitalEvents(t *testing.T) {
	recorder := &fakeRecorder{}
	svc := newTestService(&fakeStore{}, recorder)
	ctx := context.Background()

	batch := []model.Appointment{
		{ID: 1, CatID: 10, Date: testNow.AddDate(0, -2, 0), MedicalNotes: "euthanized, advanced illness"},
		{ID: 2, CatID: 11, Date: testNow.AddDate(0, -3, 0), Lactating: true},
	}

	events, err := svc.ExtractVitalEvents(ctx, batch)
	require.NoError(t, err)
	assert.Len(t, events.Mortalities, 1)
	assert.Len(t, events.Births, 1)

	t.Run("re-running the batch records nothing new", func(t *testing.T) {
		events, err := svc.ExtractVitalEvents(ctx, batch)
		require.NoError(t, err)
		assert.Empty(t, events.Mortalities)
		assert.Empty(t, events.Births)
		assert.Len(t, recorder.events.Mortalities, 1)
		assert.Len(t, recorder.events.Births, 1)
	})
}

func TestServiceForecast(t *testing.T) {
	recent := testNow.AddDate(0, -1, 0)
	store := &fakeStore{
		places: []model.Place{{ID: 1}},
		estimates: map[int64][]model.ColonyEstimate{
			1: {estimate(1, model.SourcePostClinicSurvey, intp(10), intp(5), testNow.AddDate(-1, -2, 0))},
		},
		appointments: []model.Appointment{
			{ID: 1, CatID: 10, Date: recent},
		},
	}
	recorder := &fakeRecorder{
		events: model.VitalEvents{
			Births: []model.BirthEvent{birth(5, testNow.AddDate(0, -13, 0))},
		},
	}
	svc := newTestService(store, recorder)

	report, err := svc.Forecast(context.Background(), testNow.AddDate(-2, 0, 0), testNow)
	require.NoError(t, err)

	assert.NotEmpty(t, report.YearOverYear)

	var stale *model.Alert
	for i := range report.Alerts {
		if report.Alerts[i].Kind == model.AlertStaleEstimate {
			stale = &report.Alerts[i]
		}
	}
	require.NotNil(t, stale, "a place whose newest estimate is over the horizon must alert")
	assert.Equal(t, int64(1), stale.PlaceID)
}

func TestServiceForecastSkipsDeathOutcomeAppointments(t *testing.T) {
	recent := testNow.AddDate(0, -1, 0)
	store := &fakeStore{
		appointments: []model.Appointment{
			{ID: 1, CatID: 10, Date: recent, MedicalNotes: "routine spay, recovered well"},
			{ID: 2, CatID: 11, Date: recent, MedicalNotes: "found dead at trap site"},
		},
	}
	svc := newTestService(store, &fakeRecorder{})

	report, err := svc.Forecast(context.Background(), testNow.AddDate(-2, 0, 0), testNow)
	require.NoError(t, err)

	var current *model.YearComparison
	for i := range report.YearOverYear {
		if report.YearOverYear[i].Year == testNow.Year() {
			current = &report.YearOverYear[i]
		}
	}
	require.NotNil(t, current)
	assert.Equal(t, 1, current.Alterations, "a death outcome is not a surgery")
}

func TestServiceCompletionForecast(t *testing.T) {
	store := &fakeStore{
		estimates: map[int64][]model.ColonyEstimate{
			1: {
				estimate(1, model.SourcePostClinicSurvey, intp(10), intp(4), testNow.AddDate(0, -4, 0)),
				estimate(2, model.SourcePostClinicSurvey, intp(10), intp(6), testNow.AddDate(0, -2, 0)),
			},
			2: {
				estimate(3, model.SourcePostClinicSurvey, intp(10), intp(4), testNow.AddDate(0, -2, 0)),
			},
		},
	}
	svc := newTestService(store, &fakeRecorder{})
	ctx := context.Background()

	t.Run("rising trend projects a crossing date", func(t *testing.T) {
		fc, err := svc.CompletionForecast(ctx, 1)
		require.NoError(t, err)
		assert.False(t, fc.InsufficientHistory)
		require.NotNil(t, fc.ProjectedDate)
		assert.True(t, fc.ProjectedDate.After(testNow.AddDate(0, -2, 0)))
	})

	t.Run("a single estimate is insufficient history", func(t *testing.T) {
		fc, err := svc.CompletionForecast(ctx, 2)
		require.NoError(t, err)
		assert.True(t, fc.InsufficientHistory)
		assert.Nil(t, fc.ProjectedDate)
	})
}

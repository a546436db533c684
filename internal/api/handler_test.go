package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/config"
	"beacon/internal/core"
	"beacon/internal/domain/model"
)

type stubStore struct {
	places    []model.Place
	estimates map[int64][]model.ColonyEstimate
}

func (s *stubStore) ListPlaces(ctx context.Context) ([]model.Place, error) {
	return s.places, nil
}

func (s *stubStore) ListEstimates(ctx context.Context, placeIDs []int64) (map[int64][]model.ColonyEstimate, error) {
	out := make(map[int64][]model.ColonyEstimate, len(placeIDs))
	for _, id := range placeIDs {
		out[id] = s.estimates[id]
	}
	return out, nil
}

func (s *stubStore) ListAppointments(ctx context.Context, since time.Time) ([]model.Appointment, error) {
	return nil, nil
}

type stubRecorder struct {
	events model.VitalEvents
}

func (s *stubRecorder) RecordedEvents(ctx context.Context) (model.VitalEvents, error) {
	return s.events, nil
}

func (s *stubRecorder) SaveBirths(ctx context.Context, births []model.BirthEvent) error {
	s.events.Births = append(s.events.Births, births...)
	return nil
}

func (s *stubRecorder) SaveMortalities(ctx context.Context, mortalities []model.MortalityEvent) error {
	s.events.Mortalities = append(s.events.Mortalities, mortalities...)
	return nil
}

func testRouter(store *stubStore, recorder *stubRecorder) *mux.Router {
	cfg := config.Default()
	service := core.NewService(store, recorder, nil, cfg, nil)
	handler := NewHandler(service, cfg, nil)
	r := mux.NewRouter()
	handler.Register(r)
	return r
}

func intp(v int) *int { return &v }

func seededStore() *stubStore {
	observed := time.Now().AddDate(0, -1, 0)
	return &stubStore{
		places: []model.Place{
			{ID: 1, Coordinate: &model.Coordinate{Lat: 40.0, Lon: -75.0}},
			{ID: 2},
		},
		estimates: map[int64][]model.ColonyEstimate{
			1: {{
				ID: 1, PlaceID: 1,
				TotalCats:    intp(10),
				AlteredCount: intp(8),
				Source:       model.SourcePostClinicSurvey,
				ObservedAt:   &observed,
				CreatedAt:    observed,
			}},
		},
	}
}

func TestPlaceEcologyEndpoint(t *testing.T) {
	router := testRouter(seededStore(), &stubRecorder{})

	t.Run("place with observations", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/places/1/ecology", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			PlaceID int64               `json:"place_id"`
			Status  model.ColonyStatus  `json:"status"`
			Stats   *model.EcologyStats `json:"stats"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, int64(1), resp.PlaceID)
		assert.Equal(t, model.StatusManaged, resp.Status)
		require.NotNil(t, resp.Stats)
	})

	t.Run("place without observations answers no_data, not an error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/places/2/ecology", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Status model.ColonyStatus `json:"status"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, model.StatusNoData, resp.Status)
	})

	t.Run("invalid place id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/places/bogus/ecology", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestClustersEndpoint(t *testing.T) {
	router := testRouter(seededStore(), &stubRecorder{})

	t.Run("explicit degenerate parameters return an empty set", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{"epsilon_m": -5, "min_points": 2})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clusters", bytes.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		var clusters []model.Cluster
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&clusters))
		assert.Empty(t, clusters)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clusters", bytes.NewReader([]byte("{"))))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExtractVitalEventsEndpoint(t *testing.T) {
	recorder := &stubRecorder{}
	router := testRouter(seededStore(), recorder)

	payload := map[string]interface{}{
		"appointments": []map[string]interface{}{
			{"id": 1, "cat_id": 10, "date": time.Now().AddDate(0, -2, 0).Format(time.RFC3339), "lactating": true},
		},
	}
	body, _ := json.Marshal(payload)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/vital-events/extract", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var events model.VitalEvents
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	assert.Len(t, events.Births, 1)
	assert.Len(t, recorder.events.Births, 1)
}

func TestForecastEndpoint(t *testing.T) {
	router := testRouter(seededStore(), &stubRecorder{})

	t.Run("default window", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forecast", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forecast?from=notadate", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

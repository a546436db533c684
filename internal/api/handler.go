package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"beacon/internal/config"
	"beacon/internal/core"
	"beacon/internal/domain/model"
)

// Handler exposes the engine to the surrounding CRUD/API layer. Every
// operation returns a typed JSON result; no_data and degenerate parameter
// cases are payloads, never 5xx failures.
type Handler struct {
	service *core.Service
	cfg     config.Engine
	log     *zap.SugaredLogger
}

// NewHandler builds the HTTP surface over the engine service.
func NewHandler(service *core.Service, cfg config.Engine, log *zap.SugaredLogger) *Handler {
	return &Handler{service: service, cfg: cfg, log: log}
}

// Register mounts the engine's routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/places/{id}/ecology", h.PlaceEcology).Methods(http.MethodGet)
	r.HandleFunc("/api/places/{id}/completion-forecast", h.PlaceCompletionForecast).Methods(http.MethodGet)
	r.HandleFunc("/api/ecology", h.AllEcology).Methods(http.MethodGet)
	r.HandleFunc("/api/clusters", h.Clusters).Methods(http.MethodPost)
	r.HandleFunc("/api/vital-events/extract", h.ExtractVitalEvents).Methods(http.MethodPost)
	r.HandleFunc("/api/forecast", h.Forecast).Methods(http.MethodGet)
}

type ecologyResponse struct {
	PlaceID int64               `json:"place_id"`
	Status  model.ColonyStatus  `json:"status"`
	Stats   *model.EcologyStats `json:"stats,omitempty"`
}

// PlaceEcology returns the reconciled stats and status for one place. A
// place without usable observations answers with status no_data.
func (h *Handler) PlaceEcology(w http.ResponseWriter, r *http.Request) {
	placeID, ok := h.placeID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Estimate(r.Context(), placeID)
	if err != nil {
		h.serverError(w, "computing ecology stats", err)
		return
	}

	writeJSON(w, http.StatusOK, ecologyResponse{
		PlaceID: placeID,
		Status:  h.service.Classify(stats),
		Stats:   stats,
	})
}

// AllEcology returns stats and status for every place. Places classified
// no_data are included only when ?include_no_data=true.
func (h *Handler) AllEcology(w http.ResponseWriter, r *http.Request) {
	includeNoData := r.URL.Query().Get("include_no_data") == "true"

	all, err := h.service.EstimateAll(r.Context())
	if err != nil {
		h.serverError(w, "computing ecology stats", err)
		return
	}

	out := make([]ecologyResponse, 0, len(all))
	for placeID, stats := range all {
		status := h.service.Classify(stats)
		if status == model.StatusNoData && !includeNoData {
			continue
		}
		out = append(out, ecologyResponse{PlaceID: placeID, Status: status, Stats: stats})
	}
	writeJSON(w, http.StatusOK, out)
}

type clusterRequest struct {
	EpsilonM    *float64 `json:"epsilon_m"`
	MinPoints   *int     `json:"min_points"`
	WithContext bool     `json:"with_context"`
}

// Clusters runs a DBSCAN pass over all geocoded places. Omitted parameters
// fall back to configured defaults; explicitly non-positive parameters run
// the defined degenerate pass (empty result) instead of erroring.
func (h *Handler) Clusters(w http.ResponseWriter, r *http.Request) {
	var req clusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	epsilonM := h.cfg.DefaultEpsilonM
	if req.EpsilonM != nil {
		epsilonM = *req.EpsilonM
	}
	minPoints := h.cfg.DefaultMinPoints
	if req.MinPoints != nil {
		minPoints = *req.MinPoints
	}

	clusters, err := h.service.Cluster(r.Context(), epsilonM, minPoints, req.WithContext)
	if err != nil {
		h.serverError(w, "clustering places", err)
		return
	}
	writeJSON(w, http.StatusOK, clusters)
}

type extractRequest struct {
	Since        string              `json:"since,omitempty"`
	Appointments []model.Appointment `json:"appointments,omitempty"`
}

// ExtractVitalEvents infers birth and mortality events, either from an
// inline appointment batch or from stored appointments on or after since.
func (h *Handler) ExtractVitalEvents(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	batch := req.Appointments
	if len(batch) == 0 {
		since := time.Time{}
		if req.Since != "" {
			parsed, err := time.Parse("2006-01-02", req.Since)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid since date, use YYYY-MM-DD"})
				return
			}
			since = parsed
		}
		fetched, err := h.service.FetchAppointments(r.Context(), since)
		if err != nil {
			h.serverError(w, "fetching appointments", err)
			return
		}
		batch = fetched
	}

	events, err := h.service.ExtractVitalEvents(r.Context(), batch)
	if err != nil {
		h.serverError(w, "extracting vital events", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Forecast returns the seasonal trend report for the requested window,
// defaulting to the last two full years plus the current one.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	from := now.AddDate(-2, 0, 0)
	to := now

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid from date, use YYYY-MM-DD"})
			return
		}
		from = parsed
	}
	if v := q.Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid to date, use YYYY-MM-DD"})
			return
		}
		to = parsed
	}

	report, err := h.service.Forecast(r.Context(), from, to)
	if err != nil {
		h.serverError(w, "building forecast", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// PlaceCompletionForecast projects when the place would reach managed
// status; insufficient history is a typed payload, not an error.
func (h *Handler) PlaceCompletionForecast(w http.ResponseWriter, r *http.Request) {
	placeID, ok := h.placeID(w, r)
	if !ok {
		return
	}

	fc, err := h.service.CompletionForecast(r.Context(), placeID)
	if err != nil {
		h.serverError(w, "projecting completion", err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) placeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid place id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) serverError(w http.ResponseWriter, action string, err error) {
	if h.log != nil {
		h.log.Errorw("Request failed", "action", action, "error", err)
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: action + " failed"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

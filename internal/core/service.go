package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"beacon/internal/config"
	"beacon/internal/domain/model"
)

// Service orchestrates the engine: it pulls observation snapshots, runs the
// pure reducers, and caches derived results. Derived outputs are
// replaceable, so recomputation races resolve as last writer wins on the
// cache.
type Service struct {
	store      ObservationStore
	events     EventRecorder
	sites      SiteContextProvider
	cfg        config.Engine
	estimator  *Estimator
	extractor  *VitalEventsExtractor
	forecaster *Forecaster
	cache      *gocache.Cache
	log        *zap.SugaredLogger
	now        func() time.Time
}

// NewService wires the engine. sites may be nil when no Overpass endpoint
// is configured; cluster site context is then skipped.
func NewService(
	store ObservationStore,
	events EventRecorder,
	sites SiteContextProvider,
	cfg config.Engine,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		store:      store,
		events:     events,
		sites:      sites,
		cfg:        cfg,
		estimator:  NewEstimator(cfg, log),
		extractor:  NewVitalEventsExtractor(cfg, log),
		forecaster: NewForecaster(cfg, log),
		cache:      gocache.New(cfg.CacheTTL, cfg.CacheCleanup),
		log:        log,
		now:        time.Now,
	}
}

// ecology cache entries wrap the pointer so a cached no_data (nil) is
// distinguishable from a cache miss.
type cachedStats struct {
	stats *model.EcologyStats
}

func ecologyKey(placeID int64) string {
	return fmt.Sprintf("ecology:%d", placeID)
}

func clusterKey(epsilonM float64, minPoints int) string {
	return fmt.Sprintf("clusters:%g:%d", epsilonM, minPoints)
}

// Estimate computes the reconciled EcologyStats for one place. A nil result
// with a nil error is the typed no_data outcome.
func (s *Service) Estimate(ctx context.Context, placeID int64) (*model.EcologyStats, error) {
	if hit, ok := s.cache.Get(ecologyKey(placeID)); ok {
		return hit.(cachedStats).stats, nil
	}

	byPlace, err := s.store.ListEstimates(ctx, []int64{placeID})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching estimates for place %d", placeID)
	}

	stats := s.estimator.Compute(placeID, byPlace[placeID], s.now())
	s.cache.SetDefault(ecologyKey(placeID), cachedStats{stats: stats})
	return stats, nil
}

// EstimateAll computes EcologyStats for every place in one batched read.
// Per-place reductions are pure and run across a bounded worker pool.
func (s *Service) EstimateAll(ctx context.Context) (map[int64]*model.EcologyStats, error) {
	places, err := s.store.ListPlaces(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing places")
	}
	ids := make([]int64, len(places))
	for i, p := range places {
		ids[i] = p.ID
	}

	byPlace, err := s.store.ListEstimates(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "listing estimates")
	}

	now := s.now()
	results := make(map[int64]*model.EcologyStats, len(places))
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := s.cfg.EstimateWorkers
	if workers < 1 {
		workers = 1
	}
	work := make(chan int64)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				stats := s.estimator.Compute(id, byPlace[id], now)
				mu.Lock()
				results[id] = stats
				mu.Unlock()
			}
		}()
	}
	for _, id := range ids {
		work <- id
	}
	close(work)
	wg.Wait()

	for id, stats := range results {
		s.cache.SetDefault(ecologyKey(id), cachedStats{stats: stats})
	}
	return results, nil
}

// Classify maps stats to a colony status using the configured thresholds.
func (s *Service) Classify(stats *model.EcologyStats) model.ColonyStatus {
	return Classify(stats, s.cfg.Status)
}

// Cluster groups all geocoded places into spatial work clusters. When
// withContext is set and a site provider is wired, each cluster centroid is
// annotated with nearby mapped features; a context lookup failure degrades
// to an unannotated cluster rather than failing the run.
func (s *Service) Cluster(ctx context.Context, epsilonM float64, minPoints int, withContext bool) ([]model.Cluster, error) {
	key := clusterKey(epsilonM, minPoints)
	if !withContext {
		if hit, ok := s.cache.Get(key); ok {
			return hit.([]model.Cluster), nil
		}
	}

	places, err := s.store.ListPlaces(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing places for clustering")
	}

	clusters := ClusterPlaces(places, epsilonM, minPoints)

	if withContext && s.sites != nil {
		for i := range clusters {
			features, err := s.sites.NearbyFeatures(ctx, clusters[i].Centroid, s.cfg.SiteContextM)
			if err != nil {
				if s.log != nil {
					s.log.Warnw("Site context lookup failed for cluster",
						"centroid", clusters[i].Centroid, "error", err)
				}
				continue
			}
			clusters[i].SiteContext = features
		}
	}

	if !withContext {
		s.cache.SetDefault(key, clusters)
	}
	return clusters, nil
}

// ExtractVitalEvents runs the inference over the batch and persists the new
// events. Idempotency holds across runs: already-recorded events are
// excluded before saving.
func (s *Service) ExtractVitalEvents(ctx context.Context, batch []model.Appointment) (model.VitalEvents, error) {
	prior, err := s.events.RecordedEvents(ctx)
	if err != nil {
		return model.VitalEvents{}, errors.Wrap(err, "loading recorded vital events")
	}

	extracted := s.extractor.Extract(batch, prior, s.now())

	if len(extracted.Births) > 0 {
		if err := s.events.SaveBirths(ctx, extracted.Births); err != nil {
			return model.VitalEvents{}, errors.Wrap(err, "saving birth events")
		}
	}
	if len(extracted.Mortalities) > 0 {
		if err := s.events.SaveMortalities(ctx, extracted.Mortalities); err != nil {
			return model.VitalEvents{}, errors.Wrap(err, "saving mortality events")
		}
	}

	if s.log != nil {
		s.log.Infow("Vital events extracted",
			"appointments", len(batch),
			"births", len(extracted.Births),
			"mortalities", len(extracted.Mortalities))
	}
	return extracted, nil
}

// FetchAppointments reads stored clinical appointments on or after since,
// for callers that extract events from the shared store instead of an
// inline batch.
func (s *Service) FetchAppointments(ctx context.Context, since time.Time) ([]model.Appointment, error) {
	appointments, err := s.store.ListAppointments(ctx, since)
	if err != nil {
		return nil, errors.Wrap(err, "listing appointments")
	}
	return appointments, nil
}

// Forecast builds the trend report for [from, to]: seasonal buckets,
// year-over-year comparison and alert lists (kitten surges, stale
// estimates). Alteration volume is counted from clinic appointments.
func (s *Service) Forecast(ctx context.Context, from, to time.Time) (model.ForecastReport, error) {
	recorded, err := s.events.RecordedEvents(ctx)
	if err != nil {
		return model.ForecastReport{}, errors.Wrap(err, "loading recorded vital events")
	}

	appointments, err := s.store.ListAppointments(ctx, from)
	if err != nil {
		return model.ForecastReport{}, errors.Wrap(err, "listing appointments")
	}
	// An appointment whose notes record a death documented an outcome, not
	// an alteration surgery; it does not count toward the surgery trend.
	alterations := make([]time.Time, 0, len(appointments))
	for _, a := range appointments {
		if s.extractor.indicatesMortality(a.MedicalNotes) {
			continue
		}
		alterations = append(alterations, a.Date)
	}

	now := s.now()
	report := s.forecaster.Report(recorded.Births, recorded.Mortalities, alterations, from, to, now)

	latest, err := s.latestEstimateDates(ctx)
	if err != nil {
		// Stale-estimate alerts are best effort; the trend report stands.
		if s.log != nil {
			s.log.Warnw("Skipping stale-estimate alerts", "error", err)
		}
	} else {
		report.Alerts = append(report.Alerts, s.forecaster.StaleEstimateAlerts(latest, now)...)
	}
	return report, nil
}

// CompletionForecast replays a place's estimate history through the
// estimator to recover the p_lower_pct trend, then projects the managed
// crossing date.
func (s *Service) CompletionForecast(ctx context.Context, placeID int64) (model.CompletionForecast, error) {
	byPlace, err := s.store.ListEstimates(ctx, []int64{placeID})
	if err != nil {
		return model.CompletionForecast{}, errors.Wrapf(err, "fetching estimates for place %d", placeID)
	}
	estimates := byPlace[placeID]

	dates := make(map[time.Time]bool)
	for _, est := range estimates {
		dates[est.EffectiveDate().Truncate(24*time.Hour)] = true
	}

	var history []RatePoint
	for date := range dates {
		asOf := date.Add(24*time.Hour - time.Second)
		var visible []model.ColonyEstimate
		for _, est := range estimates {
			if !est.EffectiveDate().After(asOf) {
				visible = append(visible, est)
			}
		}
		stats := s.estimator.Compute(placeID, visible, asOf)
		if stats != nil && stats.PLowerPct != nil {
			history = append(history, RatePoint{Date: date, Pct: *stats.PLowerPct})
		}
	}

	return s.forecaster.CompletionForecast(placeID, history, s.now()), nil
}

// InvalidatePlace drops derived results that depend on the place's
// observation set: its cached EcologyStats and every cached clustering run.
func (s *Service) InvalidatePlace(placeID int64) {
	s.cache.Delete(ecologyKey(placeID))
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, "clusters:") {
			s.cache.Delete(key)
		}
	}
}

func (s *Service) latestEstimateDates(ctx context.Context) (map[int64]time.Time, error) {
	places, err := s.store.ListPlaces(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(places))
	for i, p := range places {
		ids[i] = p.ID
	}
	byPlace, err := s.store.ListEstimates(ctx, ids)
	if err != nil {
		return nil, err
	}
	latest := make(map[int64]time.Time, len(byPlace))
	for id, estimates := range byPlace {
		for _, est := range estimates {
			if d := est.EffectiveDate(); d.After(latest[id]) {
				latest[id] = d
			}
		}
	}
	return latest, nil
}

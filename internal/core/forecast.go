package core

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"beacon/internal/config"
	"beacon/internal/domain/model"
)

// Forecaster produces read-only seasonal trend reports, year-over-year
// comparisons and alert lists from vital events and estimate history.
type Forecaster struct {
	cfg config.Engine
	log *zap.SugaredLogger
}

// NewForecaster builds a Forecaster. A nil logger disables logging.
func NewForecaster(cfg config.Engine, log *zap.SugaredLogger) *Forecaster {
	return &Forecaster{cfg: cfg, log: log}
}

// Report aggregates events within [from, to]. alterations are the dates of
// completed alteration surgeries. The current calendar year is marked
// partial in the year-over-year table rather than extrapolated.
func (f *Forecaster) Report(
	births []model.BirthEvent,
	mortalities []model.MortalityEvent,
	alterations []time.Time,
	from, to, now time.Time,
) model.ForecastReport {
	report := model.ForecastReport{From: from, To: to}

	type seasonKey struct {
		year   int
		season model.Season
	}
	seasons := make(map[seasonKey]*model.SeasonCount)
	bucket := func(t time.Time) *model.SeasonCount {
		key := seasonKey{t.Year(), model.SeasonOf(t.Month())}
		sc, ok := seasons[key]
		if !ok {
			sc = &model.SeasonCount{Year: key.year, Season: key.season}
			seasons[key] = sc
		}
		return sc
	}

	inWindow := func(t time.Time) bool {
		return !t.Before(from) && !t.After(to)
	}

	years := make(map[int]*model.YearComparison)
	yearOf := func(y int) *model.YearComparison {
		yc, ok := years[y]
		if !ok {
			yc = &model.YearComparison{Year: y, Partial: y == now.Year()}
			years[y] = yc
		}
		return yc
	}

	springSummerBirths, totalBirths := 0, 0
	for _, b := range births {
		if !inWindow(b.Date) {
			continue
		}
		bucket(b.Date).Births++
		yearOf(b.Date.Year()).Births++
		totalBirths++
		s := model.SeasonOf(b.Date.Month())
		if s == model.SeasonSpring || s == model.SeasonSummer {
			springSummerBirths++
		}
	}
	for _, m := range mortalities {
		if !inWindow(m.Date) {
			continue
		}
		bucket(m.Date).Mortalities++
		yearOf(m.Date.Year()).Mortalities++
	}
	for _, a := range alterations {
		if !inWindow(a) {
			continue
		}
		yearOf(a.Year()).Alterations++
	}

	for _, sc := range seasons {
		report.Trend = append(report.Trend, *sc)
	}
	sort.Slice(report.Trend, func(i, j int) bool {
		if report.Trend[i].Year != report.Trend[j].Year {
			return report.Trend[i].Year < report.Trend[j].Year
		}
		return seasonOrder(report.Trend[i].Season) < seasonOrder(report.Trend[j].Season)
	})

	for _, yc := range years {
		report.YearOverYear = append(report.YearOverYear, *yc)
	}
	sort.Slice(report.YearOverYear, func(i, j int) bool {
		return report.YearOverYear[i].Year < report.YearOverYear[j].Year
	})

	// Kitten surge: births historically concentrate in spring and summer;
	// warn when that pattern holds and the warm season is current or next.
	if totalBirths > 0 && springSummerBirths*2 > totalBirths {
		season := model.SeasonOf(now.Month())
		upcoming := model.SeasonOf(now.AddDate(0, 3, 0).Month())
		if season == model.SeasonSpring || season == model.SeasonSummer ||
			upcoming == model.SeasonSpring {
			report.Alerts = append(report.Alerts, model.Alert{
				Kind: model.AlertKittenSurge,
				Message: fmt.Sprintf("%d of %d recorded births fell in spring/summer; expect a kitten surge",
					springSummerBirths, totalBirths),
			})
		}
	}

	return report
}

// StaleEstimateAlerts flags places whose newest estimate predates the
// configured staleness horizon. latestByPlace maps place id to its newest
// estimate date.
func (f *Forecaster) StaleEstimateAlerts(latestByPlace map[int64]time.Time, now time.Time) []model.Alert {
	cutoff := now.AddDate(0, 0, -f.cfg.StaleEstimateDays)
	var alerts []model.Alert
	ids := make([]int64, 0, len(latestByPlace))
	for id := range latestByPlace {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		latest := latestByPlace[id]
		if latest.Before(cutoff) {
			alerts = append(alerts, model.Alert{
				Kind:    model.AlertStaleEstimate,
				PlaceID: id,
				Message: fmt.Sprintf("newest estimate is from %s", latest.Format("2006-01-02")),
			})
		}
	}
	return alerts
}

// RatePoint is one historical observation of a place's lower-bound
// alteration rate.
type RatePoint struct {
	Date time.Time
	Pct  int
}

// CompletionForecast projects when the place crosses the managed threshold
// under a constant-rate assumption over the observed trend. Fewer than two
// time-separated points yields an explicit insufficient-history result, not
// a fabricated date. A flat or declining trend yields no projected date.
func (f *Forecaster) CompletionForecast(placeID int64, history []RatePoint, now time.Time) model.CompletionForecast {
	sorted := append([]RatePoint(nil), history...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	// Collapse same-day points; the trend needs time separation.
	var points []RatePoint
	for _, p := range sorted {
		if len(points) > 0 && points[len(points)-1].Date.Equal(p.Date) {
			points[len(points)-1] = p
			continue
		}
		points = append(points, p)
	}

	if len(points) < 2 {
		return model.CompletionForecast{PlaceID: placeID, InsufficientHistory: true}
	}

	first, last := points[0], points[len(points)-1]
	days := last.Date.Sub(first.Date).Hours() / 24
	rate := float64(last.Pct-first.Pct) / days

	fc := model.CompletionForecast{PlaceID: placeID, RatePctPerDay: rate}

	if last.Pct >= f.cfg.Status.Managed {
		d := last.Date
		fc.ProjectedDate = &d
		return fc
	}
	if rate <= 0 {
		// Not on track; no crossing date exists under this trend.
		return fc
	}

	remaining := float64(f.cfg.Status.Managed - last.Pct)
	projected := last.Date.AddDate(0, 0, int(remaining/rate+0.5))
	if projected.Before(now) {
		projected = now
	}
	fc.ProjectedDate = &projected
	return fc
}

func seasonOrder(s model.Season) int {
	switch s {
	case model.SeasonWinter:
		return 0
	case model.SeasonSpring:
		return 1
	case model.SeasonSummer:
		return 2
	default:
		return 3
	}
}

package model

import "time"

// Season buckets calendar months for surge reporting.
type Season string

const (
	SeasonSpring Season = "spring" // Mar-May
	SeasonSummer Season = "summer" // Jun-Aug
	SeasonFall   Season = "fall"   // Sep-Nov
	SeasonWinter Season = "winter" // Dec-Feb
)

// SeasonOf maps a calendar month to its season bucket.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	case time.September, time.October, time.November:
		return SeasonFall
	default:
		return SeasonWinter
	}
}

// SeasonCount aggregates vital events for one season of one year.
type SeasonCount struct {
	Year        int    `json:"year"`
	Season      Season `json:"season"`
	Births      int    `json:"births"`
	Mortalities int    `json:"mortalities"`
}

// YearComparison is one year's totals in a year-over-year report. Partial
// marks the current, incomplete year so readers do not compare it against
// full years at face value.
type YearComparison struct {
	Year        int  `json:"year"`
	Alterations int  `json:"alterations"`
	Births      int  `json:"births"`
	Mortalities int  `json:"mortalities"`
	Partial     bool `json:"partial"`
}

// AlertKind enumerates the alert lists the reporting layer produces.
type AlertKind string

const (
	AlertKittenSurge   AlertKind = "kitten_surge"
	AlertStaleEstimate AlertKind = "stale_estimate"
)

// Alert is one entry in a forecast alert list.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	PlaceID int64     `json:"place_id,omitempty"`
	Message string    `json:"message"`
}

// ForecastReport is the output of one forecasting pass over a scope and
// time window.
type ForecastReport struct {
	From         time.Time        `json:"from"`
	To           time.Time        `json:"to"`
	Trend        []SeasonCount    `json:"trend"`
	YearOverYear []YearComparison `json:"yoy_comparison"`
	Alerts       []Alert          `json:"alerts"`
}

// CompletionForecast projects when a place's lower-bound alteration rate
// would cross the managed threshold under a constant-rate assumption.
// InsufficientHistory is set instead of a fabricated date when fewer than
// two time-separated estimates exist.
type CompletionForecast struct {
	PlaceID             int64      `json:"place_id"`
	ProjectedDate       *time.Time `json:"projected_date,omitempty"`
	RatePctPerDay       float64    `json:"rate_pct_per_day,omitempty"`
	InsufficientHistory bool       `json:"insufficient_history"`
}

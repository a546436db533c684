package model

import "time"

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ColonyType is the staff-assigned classification of a place.
type ColonyType string

const (
	ColonyIndividualCats ColonyType = "individual_cats"
	ColonySmall          ColonyType = "small_colony"
	ColonyLarge          ColonyType = "large_colony"
	ColonyFeedingStation ColonyType = "feeding_station"
	ColonyUnknown        ColonyType = "unknown"
)

// Place is a physical location where cats have been reported. The places
// registry owns it; this engine only reads it and annotates it with derived
// EcologyStats. Coordinate is nil until the place has been geocoded.
type Place struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Coordinate *Coordinate `json:"coordinate,omitempty"`
	ColonyType ColonyType  `json:"colony_type"`
}

// ColonyEstimate is one observation of a place's cat population. Estimates
// are append-only: corrections arrive as new rows, never edits.
type ColonyEstimate struct {
	ID           int64      `json:"id"`
	PlaceID      int64      `json:"place_id"`
	TotalCats    *int       `json:"total_cats,omitempty"`
	AlteredCount *int       `json:"altered_count,omitempty"`
	KittenCount  *int       `json:"kitten_count,omitempty"`
	Source       SourceType `json:"source_type"`
	ObservedAt   *time.Time `json:"observation_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Notes        string     `json:"notes,omitempty"`
}

// EffectiveDate is the observation date, falling back to record creation
// when the observer did not supply one.
func (e ColonyEstimate) EffectiveDate() time.Time {
	if e.ObservedAt != nil {
		return *e.ObservedAt
	}
	return e.CreatedAt
}

// EstimationMethod tags how BestColonyEstimate was derived.
type EstimationMethod string

const (
	MethodMarkResight     EstimationMethod = "mark_resight"
	MethodSourceHierarchy EstimationMethod = "source_hierarchy"
	MethodManualOverride  EstimationMethod = "manual_override"
)

// QualityFlag records a data-quality anomaly found while reducing a place's
// estimates. Flagged estimates are excluded from aggregation, not coerced.
type QualityFlag struct {
	EstimateID int64  `json:"estimate_id"`
	Reason     string `json:"reason"`
}

// EcologyStats is the reconciled population picture for one place, derived
// from its ColonyEstimates. It is recomputed, never persisted
// authoritatively.
type EcologyStats struct {
	PlaceID                int64            `json:"place_id"`
	AKnown                 int              `json:"a_known"`
	NRecentMax             int              `json:"n_recent_max"`
	BestColonyEstimate     *int             `json:"best_colony_estimate,omitempty"`
	Method                 EstimationMethod `json:"estimation_method,omitempty"`
	PLower                 *float64         `json:"p_lower,omitempty"`
	PLowerPct              *int             `json:"p_lower_pct,omitempty"`
	EstimatedWorkRemaining int              `json:"estimated_work_remaining"`
	Flags                  []QualityFlag    `json:"flags,omitempty"`
	ComputedAt             time.Time        `json:"computed_at"`
}

// ColonyStatus is the management state derived from the lower-bound
// alteration rate.
type ColonyStatus string

const (
	StatusManaged        ColonyStatus = "managed"
	StatusInProgress     ColonyStatus = "in_progress"
	StatusNeedsWork      ColonyStatus = "needs_work"
	StatusNeedsAttention ColonyStatus = "needs_attention"
	StatusNoData         ColonyStatus = "no_data"
)

// Cluster is an ephemeral grouping of places produced by one clustering run.
type Cluster struct {
	Centroid    Coordinate    `json:"centroid"`
	Members     []int64       `json:"members"`
	PlaceCount  int           `json:"place_count"`
	SiteContext []SiteFeature `json:"site_context,omitempty"`
}

// SiteFeature is a mapped feature near a cluster centroid, used to annotate
// work clusters with likely feeding-site context.
type SiteFeature struct {
	Name       string     `json:"name,omitempty"`
	Kind       string     `json:"kind"`
	Coordinate Coordinate `json:"coordinate"`
	DistanceM  float64    `json:"distance_m"`
}

// Appointment is the clinical read contract consumed by the vital events
// model. Owned by the clinic system.
type Appointment struct {
	ID           int64     `json:"id"`
	CatID        int64     `json:"cat_id"`
	Date         time.Time `json:"date"`
	MedicalNotes string    `json:"medical_notes,omitempty"`
	Pregnant     bool      `json:"pregnant"`
	Lactating    bool      `json:"lactating"`
}

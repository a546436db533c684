package core

import (
	"math"
	"time"

	"go.uber.org/zap"

	"beacon/internal/config"
	"beacon/internal/domain/model"
)

// Estimator reduces a place's append-only estimate history to a single
// reconciled EcologyStats. The reduction is pure given its inputs, which
// makes per-place computations safe to run in parallel.
type Estimator struct {
	cfg config.Engine
	log *zap.SugaredLogger
}

// NewEstimator builds an Estimator. A nil logger disables logging.
func NewEstimator(cfg config.Engine, log *zap.SugaredLogger) *Estimator {
	return &Estimator{cfg: cfg, log: log}
}

// Compute reduces the given estimates for a place. It returns nil when the
// place has no usable data: no estimate carries a total and no verified-cats
// source exists. Inconsistent raw inputs are flagged and excluded from
// aggregation, never coerced.
func (e *Estimator) Compute(placeID int64, estimates []model.ColonyEstimate, now time.Time) *model.EcologyStats {
	var flags []model.QualityFlag
	valid := make([]model.ColonyEstimate, 0, len(estimates))
	suspicious := make(map[int64]bool)

	for _, est := range estimates {
		if reason := validateEstimate(est); reason != "" {
			flags = append(flags, model.QualityFlag{EstimateID: est.ID, Reason: reason})
			if e.log != nil {
				e.log.Warnw("Excluding inconsistent colony estimate",
					"place_id", placeID, "estimate_id", est.ID, "reason", reason)
			}
			continue
		}
		if est.Source == model.SourceAIParsed && est.TotalCats != nil && *est.TotalCats > e.cfg.AISuspectCeiling {
			flags = append(flags, model.QualityFlag{EstimateID: est.ID, Reason: "suspicious ai-parsed total, needs manual review"})
			suspicious[est.ID] = true
			if e.log != nil {
				e.log.Warnw("Suspicious AI-parsed estimate flagged for review",
					"place_id", placeID, "estimate_id", est.ID, "total_cats", *est.TotalCats)
			}
		}
		valid = append(valid, est)
	}

	if !hasUsableData(valid) {
		if e.log != nil && len(flags) > 0 {
			e.log.Infow("Place has only flagged estimates, returning no data",
				"place_id", placeID, "flag_count", len(flags))
		}
		return nil
	}

	stats := &model.EcologyStats{
		PlaceID:    placeID,
		Flags:      flags,
		ComputedAt: now,
	}

	aKnown, aEstimateID := e.alteredKnown(valid, suspicious)
	stats.AKnown = aKnown

	resight := e.resightSample(valid, now)
	if resight != nil && resight.TotalCats != nil {
		stats.NRecentMax = *resight.TotalCats
	}

	best, method := e.bestEstimate(valid, aKnown, aEstimateID, resight, suspicious, stats)
	if best != nil {
		if *best > e.cfg.EstimateCeiling {
			stats.Flags = append(stats.Flags, model.QualityFlag{
				Reason: "implausible colony size for a single site",
			})
			if e.log != nil {
				e.log.Warnw("Colony estimate exceeds sanity ceiling",
					"place_id", placeID, "best_colony_estimate", *best, "ceiling", e.cfg.EstimateCeiling)
			}
		}
		stats.BestColonyEstimate = best
		stats.Method = method
		if *best > 0 {
			p := float64(aKnown) / float64(*best)
			pct := int(math.Round(100 * p))
			if pct > 100 {
				pct = 100
			}
			stats.PLower = &p
			stats.PLowerPct = &pct
		}
		stats.EstimatedWorkRemaining = *best - aKnown
		if stats.EstimatedWorkRemaining < 0 {
			stats.EstimatedWorkRemaining = 0
		}
	}

	return stats
}

// validateEstimate returns a non-empty reason when the raw inputs are
// internally inconsistent.
func validateEstimate(est model.ColonyEstimate) string {
	if est.TotalCats != nil && *est.TotalCats < 0 {
		return "negative total_cats"
	}
	if est.AlteredCount != nil && *est.AlteredCount < 0 {
		return "negative altered_count"
	}
	if est.KittenCount != nil && *est.KittenCount < 0 {
		return "negative kitten_count"
	}
	if est.TotalCats != nil && est.AlteredCount != nil && *est.AlteredCount > *est.TotalCats {
		return "altered_count exceeds total_cats"
	}
	return ""
}

// hasUsableData applies the input constraint: at least one estimate with a
// total, or at least one verified-cats rollup.
func hasUsableData(estimates []model.ColonyEstimate) bool {
	for _, est := range estimates {
		if est.TotalCats != nil || est.Source == model.SourceVerifiedCats {
			return true
		}
	}
	return false
}

// alteredKnown picks a_known from the highest-confidence source carrying an
// altered count, taking the max within that source so repeated reports are
// not double counted. Suspicious AI estimates are down-weighted to the
// bottom of the hierarchy.
func (e *Estimator) alteredKnown(estimates []model.ColonyEstimate, suspicious map[int64]bool) (int, int64) {
	bestRank := -1
	aKnown := 0
	var estimateID int64
	for _, est := range estimates {
		if est.AlteredCount == nil {
			continue
		}
		rank := est.Source.Confidence()
		if suspicious[est.ID] {
			rank = 0
		}
		if rank > bestRank {
			bestRank = rank
			aKnown = *est.AlteredCount
			estimateID = est.ID
		} else if rank == bestRank && *est.AlteredCount > aKnown {
			aKnown = *est.AlteredCount
			estimateID = est.ID
		}
	}
	return aKnown, estimateID
}

// resightSample returns the recent direct observation with the largest
// total, or nil when none falls inside the recency window.
func (e *Estimator) resightSample(estimates []model.ColonyEstimate, now time.Time) *model.ColonyEstimate {
	cutoff := now.AddDate(0, 0, -e.cfg.RecencyWindowDays)
	var sample *model.ColonyEstimate
	for i := range estimates {
		est := &estimates[i]
		if !est.Source.RecentDirect() || est.TotalCats == nil {
			continue
		}
		if est.EffectiveDate().Before(cutoff) {
			continue
		}
		if sample == nil || *est.TotalCats > *sample.TotalCats {
			sample = est
		}
	}
	return sample
}

// bestEstimate reconciles the population estimate. A staff-entered manual
// total always wins; otherwise Chapman mark-resight applies when the
// resighting sample independently reports how many altered cats it saw;
// otherwise the source-hierarchy max is the conservative fallback.
func (e *Estimator) bestEstimate(
	estimates []model.ColonyEstimate,
	aKnown int,
	aEstimateID int64,
	resight *model.ColonyEstimate,
	suspicious map[int64]bool,
	stats *model.EcologyStats,
) (*int, model.EstimationMethod) {
	if override := latestManualTotal(estimates); override != nil {
		best := *override
		if best < aKnown {
			// The invariant a_known <= best must hold even against an
			// override; floor and surface the conflict for review.
			stats.Flags = append(stats.Flags, model.QualityFlag{
				Reason: "manual override below known altered count",
			})
			best = aKnown
		}
		return &best, model.MethodManualOverride
	}

	if resight != nil && resight.TotalCats != nil && resight.AlteredCount != nil &&
		aKnown > 0 && resight.ID != aEstimateID {
		overlap := *resight.AlteredCount
		n := *resight.TotalCats
		best := (aKnown+1)*(n+1)/(overlap+1) - 1
		if best < aKnown {
			best = aKnown
		}
		return &best, model.MethodMarkResight
	}

	best := aKnown
	if resight != nil && resight.TotalCats != nil {
		if *resight.TotalCats > best {
			best = *resight.TotalCats
		}
	} else {
		// No recent direct sighting; the largest total from a trusted
		// source anchors the estimate. A suspicious AI total anchors only
		// when no other source ever reported one.
		anchored := false
		for _, est := range estimates {
			if est.TotalCats == nil || suspicious[est.ID] {
				continue
			}
			anchored = true
			if *est.TotalCats > best {
				best = *est.TotalCats
			}
		}
		if !anchored {
			for _, est := range estimates {
				if est.TotalCats != nil && *est.TotalCats > best {
					best = *est.TotalCats
				}
			}
		}
	}
	return &best, model.MethodSourceHierarchy
}

// latestManualTotal returns the staff-entered total from the most recent
// manual observation, if any.
func latestManualTotal(estimates []model.ColonyEstimate) *int {
	var latest *model.ColonyEstimate
	for i := range estimates {
		est := &estimates[i]
		if est.Source != model.SourceManualObservation || est.TotalCats == nil {
			continue
		}
		if latest == nil || est.EffectiveDate().After(latest.EffectiveDate()) {
			latest = est
		}
	}
	if latest == nil {
		return nil
	}
	return latest.TotalCats
}

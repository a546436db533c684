package core

import (
	"beacon/internal/config"
	"beacon/internal/domain/model"
)

// Classify maps a place's lower-bound alteration rate to its management
// status. It is a pure function of the stats and the configured thresholds;
// places without a computable rate classify as no_data and are excluded
// from threshold checks.
func Classify(stats *model.EcologyStats, th config.Thresholds) model.ColonyStatus {
	if stats == nil || stats.PLowerPct == nil {
		return model.StatusNoData
	}
	pct := *stats.PLowerPct
	switch {
	case pct >= th.Managed:
		return model.StatusManaged
	case pct >= th.InProgress:
		return model.StatusInProgress
	case pct >= th.NeedsWork:
		return model.StatusNeedsWork
	default:
		return model.StatusNeedsAttention
	}
}

package model

// SourceType identifies which system produced a ColonyEstimate. The set is
// closed; strings that do not match any known source parse to SourceUnknown
// so that new upstream integrations degrade to "unranked" instead of
// breaking the reducer.
type SourceType string

const (
	SourcePostClinicSurvey   SourceType = "post_clinic_survey"
	SourceTrapperSiteVisit   SourceType = "trapper_site_visit"
	SourceManualObservation  SourceType = "manual_observation"
	SourceTrappingRequest    SourceType = "trapping_request"
	SourceIntakeForm         SourceType = "intake_form"
	SourceAppointmentRequest SourceType = "appointment_request"
	SourceVerifiedCats       SourceType = "verified_cats"
	SourceAIParsed           SourceType = "ai_parsed"
	SourceLegacyImport       SourceType = "legacy_map_import"
	SourceUnknown            SourceType = "unknown"
)

// sourceConfidence ranks sources for the reducer; higher wins. Unranked
// (unknown) sources score zero and only ever serve as a last resort.
var sourceConfidence = map[SourceType]int{
	SourceVerifiedCats:       9,
	SourcePostClinicSurvey:   8,
	SourceTrapperSiteVisit:   7,
	SourceManualObservation:  6,
	SourceTrappingRequest:    5,
	SourceIntakeForm:         4,
	SourceAppointmentRequest: 3,
	SourceLegacyImport:       2,
	SourceAIParsed:           1,
}

// recentDirect marks sources that count as recent direct observation for
// the resighting sample.
var recentDirect = map[SourceType]bool{
	SourcePostClinicSurvey: true,
	SourceTrapperSiteVisit: true,
	SourceVerifiedCats:     true,
}

// Confidence returns the source's rank in the reduction hierarchy. Zero
// means unranked.
func (s SourceType) Confidence() int {
	return sourceConfidence[s]
}

// RecentDirect reports whether the source qualifies as a recent direct
// observation of the colony.
func (s SourceType) RecentDirect() bool {
	return recentDirect[s]
}

// ParseSourceType maps a raw source string to a SourceType. The second
// return value is false when the string names no known source; callers log
// such values and carry on with SourceUnknown.
func ParseSourceType(raw string) (SourceType, bool) {
	switch SourceType(raw) {
	case SourcePostClinicSurvey, SourceTrapperSiteVisit, SourceManualObservation,
		SourceTrappingRequest, SourceIntakeForm, SourceAppointmentRequest,
		SourceVerifiedCats, SourceAIParsed, SourceLegacyImport:
		return SourceType(raw), true
	}
	return SourceUnknown, false
}

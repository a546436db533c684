package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSourceType(t *testing.T) {
	for _, raw := range []string{
		"post_clinic_survey", "trapper_site_visit", "manual_observation",
		"trapping_request", "intake_form", "appointment_request",
		"verified_cats", "ai_parsed", "legacy_map_import",
	} {
		source, known := ParseSourceType(raw)
		assert.True(t, known, "raw=%q", raw)
		assert.Equal(t, SourceType(raw), source)
	}

	t.Run("unknown strings degrade to unranked", func(t *testing.T) {
		source, known := ParseSourceType("carrier_pigeon")
		assert.False(t, known)
		assert.Equal(t, SourceUnknown, source)
		assert.Equal(t, 0, source.Confidence())
	})
}

func TestSourceConfidenceOrdering(t *testing.T) {
	assert.Greater(t, SourceVerifiedCats.Confidence(), SourcePostClinicSurvey.Confidence())
	assert.Greater(t, SourcePostClinicSurvey.Confidence(), SourceTrapperSiteVisit.Confidence())
	assert.Greater(t, SourceManualObservation.Confidence(), SourceIntakeForm.Confidence())
	assert.Greater(t, SourceLegacyImport.Confidence(), SourceAIParsed.Confidence())
	assert.Greater(t, SourceAIParsed.Confidence(), SourceUnknown.Confidence())
}

func TestRecentDirectSources(t *testing.T) {
	assert.True(t, SourcePostClinicSurvey.RecentDirect())
	assert.True(t, SourceTrapperSiteVisit.RecentDirect())
	assert.True(t, SourceVerifiedCats.RecentDirect())

	assert.False(t, SourceTrappingRequest.RecentDirect())
	assert.False(t, SourceAIParsed.RecentDirect())
	assert.False(t, SourceManualObservation.RecentDirect())
}

package core

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"beacon/internal/config"
	"beacon/internal/domain/model"
)

// sourceSystemClinic attributes events derived from clinical appointments.
const sourceSystemClinic = "clinic_appointments"

// mortalityRule maps a clinical-notes phrase to a cause and precision.
// Rules are evaluated in order, first match wins, so more specific phrases
// come before catch-alls. Growing the taxonomy means adding rows, not
// control flow.
type mortalityRule struct {
	pattern   *regexp.Regexp
	cause     model.MortalityCause
	precision model.DatePrecision
}

var defaultMortalityRules = []mortalityRule{
	{regexp.MustCompile(`(?i)euthani[sz]|euthanasia|humanely let go`), model.CauseEuthanasia, model.PrecisionExact},
	{regexp.MustCompile(`(?i)hit by (a )?(car|truck|vehicle)|vehicle strike|roadkill|road kill`), model.CauseVehicle, model.PrecisionExact},
	{regexp.MustCompile(`(?i)died (post[- ]?op\w*|during surgery|under anesthesia)|did not survive surgery`), model.CauseOther, model.PrecisionExact},
	{regexp.MustCompile(`(?i)found dead`), model.CauseUnknown, model.PrecisionExact},
	{regexp.MustCompile(`(?i)passed away|deceased|\bdied\b`), model.CauseUnknown, model.PrecisionEstimated},
}

var (
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	usDateRe     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	olderKittens = regexp.MustCompile(`(?i)older kittens|kittens (are )?weaned|weaned litter`)
)

// VitalEventsExtractor scans clinical appointment records and infers birth
// and mortality events. Re-runs are idempotent against the events already
// recorded; a malformed record is skipped and logged, never aborts the
// batch.
type VitalEventsExtractor struct {
	cfg   config.Engine
	log   *zap.SugaredLogger
	rules []mortalityRule
}

// NewVitalEventsExtractor builds an extractor with the default phrase
// taxonomy. A nil logger disables logging.
func NewVitalEventsExtractor(cfg config.Engine, log *zap.SugaredLogger) *VitalEventsExtractor {
	return &VitalEventsExtractor{cfg: cfg, log: log, rules: defaultMortalityRules}
}

// Extract runs both inference paths over the batch. prior carries the
// events already recorded for these cats, enforcing one mortality per cat
// and one birth per (mother, source appointment) across runs.
func (x *VitalEventsExtractor) Extract(batch []model.Appointment, prior model.VitalEvents, now time.Time) model.VitalEvents {
	deceased := make(map[int64]bool, len(prior.Mortalities))
	for _, m := range prior.Mortalities {
		deceased[m.CatID] = true
	}
	born := make(map[birthKey]bool, len(prior.Births))
	for _, b := range prior.Births {
		born[birthKey{b.MotherID, b.SourceRecordID}] = true
	}

	var out model.VitalEvents
	for _, appt := range batch {
		if appt.CatID <= 0 || appt.Date.IsZero() {
			if x.log != nil {
				x.log.Warnw("Skipping malformed appointment record",
					"appointment_id", appt.ID, "cat_id", appt.CatID)
			}
			continue
		}

		if m := x.inferMortality(appt); m != nil && !deceased[appt.CatID] {
			deceased[appt.CatID] = true
			out.Mortalities = append(out.Mortalities, *m)
		}

		if b := x.inferBirth(appt, now); b != nil {
			key := birthKey{b.MotherID, b.SourceRecordID}
			if !born[key] {
				born[key] = true
				out.Births = append(out.Births, *b)
			}
		}
	}
	return out
}

type birthKey struct {
	motherID       int64
	sourceRecordID int64
}

// indicatesMortality reports whether the notes record a death. Callers
// treating appointments as surgery counts use it to drop records that
// documented an outcome instead of a procedure.
func (x *VitalEventsExtractor) indicatesMortality(notes string) bool {
	for _, rule := range x.rules {
		if rule.pattern.MatchString(notes) {
			return true
		}
	}
	return false
}

// inferMortality matches the medical notes against the phrase taxonomy.
// The event date defaults to the appointment date unless the notes embed an
// explicit one.
func (x *VitalEventsExtractor) inferMortality(appt model.Appointment) *model.MortalityEvent {
	for _, rule := range x.rules {
		if !rule.pattern.MatchString(appt.MedicalNotes) {
			continue
		}
		date := appt.Date
		precision := rule.precision
		if embedded, ok := embeddedDate(appt.MedicalNotes); ok {
			date = embedded
			precision = model.PrecisionExact
		}
		return &model.MortalityEvent{
			ID:             uuid.New(),
			CatID:          appt.CatID,
			Date:           date,
			Precision:      precision,
			Cause:          rule.cause,
			SourceSystem:   sourceSystemClinic,
			SourceRecordID: appt.ID,
			Notes:          fmt.Sprintf("matched %q in medical notes", rule.pattern.String()),
		}
	}
	return nil
}

// inferBirth derives a litter birth from lactation or overdue pregnancy.
// Both paths yield estimated precision only.
func (x *VitalEventsExtractor) inferBirth(appt model.Appointment, now time.Time) *model.BirthEvent {
	switch {
	case appt.Lactating:
		offset := x.cfg.LactationOffsetDays
		notes := "lactating at appointment"
		if olderKittens.MatchString(appt.MedicalNotes) {
			offset = x.cfg.OlderKittenOffsetDays
			notes = "lactating at appointment, notes suggest older kittens"
		}
		date := appt.Date.AddDate(0, 0, -offset)
		return &model.BirthEvent{
			ID:             uuid.New(),
			MotherID:       appt.CatID,
			Date:           date,
			Precision:      model.PrecisionEstimated,
			SourceSystem:   sourceSystemClinic,
			SourceRecordID: appt.ID,
			Notes:          notes,
		}

	case appt.Pregnant:
		stale := now.Sub(appt.Date) >= time.Duration(x.cfg.PregnancyStaleDays)*24*time.Hour
		if !stale {
			// Birth has not necessarily happened yet; nothing to infer.
			return nil
		}
		date := appt.Date.AddDate(0, 0, x.cfg.PregnancyTermDays)
		ceiling := now.AddDate(0, 0, -x.cfg.FutureBirthBufferDays)
		if date.After(ceiling) {
			date = ceiling
		}
		return &model.BirthEvent{
			ID:             uuid.New(),
			MotherID:       appt.CatID,
			Date:           date,
			Precision:      model.PrecisionEstimated,
			SourceSystem:   sourceSystemClinic,
			SourceRecordID: appt.ID,
			Notes:          "pregnant at past-due appointment",
		}
	}
	return nil
}

// embeddedDate pulls an explicit date out of free text, accepting ISO
// (2024-03-01) and US (3/1/2024) forms.
func embeddedDate(notes string) (time.Time, bool) {
	if m := isoDateRe.FindStringSubmatch(notes); m != nil {
		if t, err := time.Parse("2006-01-02", m[0]); err == nil {
			return t, true
		}
	}
	if m := usDateRe.FindStringSubmatch(notes); m != nil {
		if t, err := time.Parse("1/2/2006", m[0]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// DatePrecision tags how firmly a vital event is dated.
type DatePrecision string

const (
	PrecisionExact     DatePrecision = "exact"
	PrecisionEstimated DatePrecision = "estimated"
)

// MortalityCause is the fixed cause enumeration mapped from clinical notes.
type MortalityCause string

const (
	CauseEuthanasia MortalityCause = "euthanasia"
	CauseVehicle    MortalityCause = "vehicle"
	CauseOther      MortalityCause = "other"
	CauseUnknown    MortalityCause = "unknown"
)

// BirthEvent is an inferred litter birth, keyed by the mother since the
// individual kittens are frequently unobserved. Never user-edited.
type BirthEvent struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	MotherID       int64         `db:"mother_id" json:"mother_id"`
	Date           time.Time     `db:"date" json:"date"`
	Precision      DatePrecision `db:"precision" json:"precision"`
	SourceSystem   string        `db:"source_system" json:"source_system"`
	SourceRecordID int64         `db:"source_record_id" json:"source_record_id"`
	Notes          string        `db:"notes" json:"notes,omitempty"`
}

// MortalityEvent is an inferred death. At most one exists per cat.
type MortalityEvent struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	CatID          int64          `db:"cat_id" json:"cat_id"`
	Date           time.Time      `db:"date" json:"date"`
	Precision      DatePrecision  `db:"precision" json:"precision"`
	Cause          MortalityCause `db:"cause" json:"cause"`
	SourceSystem   string         `db:"source_system" json:"source_system"`
	SourceRecordID int64          `db:"source_record_id" json:"source_record_id"`
	Notes          string         `db:"notes" json:"notes,omitempty"`
}

// VitalEvents bundles the output of one extraction pass.
type VitalEvents struct {
	Births      []BirthEvent     `json:"births"`
	Mortalities []MortalityEvent `json:"mortalities"`
}

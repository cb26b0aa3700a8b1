package protocol

import (
	"time"

	"github.com/protocol/protocol/internal/domain/labs"
	"github.com/protocol/protocol/internal/domain/schedule"
)

// MedType categorizes the medication being tracked.
type MedType string

const (
	MedInjection MedType = "Injection"
	MedOral      MedType = "Oral"
	MedPatch     MedType = "Patch"
	MedPellet    MedType = "Pellet"
	MedGLP1      MedType = "GLP-1"
	MedOther     MedType = "Other"
)

var validMedTypes = map[MedType]bool{
	MedInjection: true, MedOral: true, MedPatch: true,
	MedPellet: true, MedGLP1: true, MedOther: true,
}

// Dose units accepted on a dose entry.
const (
	UnitML  = "mL"
	UnitMG  = "mg"
	UnitIU  = "IU"
	UnitMCG = "mcg"
)

var validDoseUnits = map[string]bool{
	UnitML: true, UnitMG: true, UnitIU: true, UnitMCG: true,
}

// DoseEntry is one logged dose. Entries are append-only: once logged they
// are never edited, and their timestamps are non-decreasing in insertion
// order.
type DoseEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Amount    string    `json:"amount,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	Site      string    `json:"site,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// Config holds the protocol's identity fields.
type Config struct {
	Name    string  `json:"name"`
	MedType MedType `json:"med_type"`
}

// LabPrepSettings controls the pre-draw preparation reminders.
type LabPrepSettings struct {
	HydrationEnabled      bool `json:"hydration_enabled"`
	HydrationLeadDays     int  `json:"hydration_lead_days"`
	DoseWarning48hEnabled bool `json:"dose_warning_48h_enabled"`
}

// HydrationLeadOptions are the selectable hydration lead times, in days.
var HydrationLeadOptions = []int{3, 5, 7, 10}

// ReminderSettings holds independent reminder toggles. Everything
// defaults to enabled.
type ReminderSettings struct {
	DoseEnabled      bool            `json:"dose_enabled"`
	DoseOffsetDays   int             `json:"dose_offset_days"`
	LabEnabled       bool            `json:"lab_enabled"`
	Lab2WeeksEnabled bool            `json:"lab_2_weeks_enabled"`
	Lab1WeekEnabled  bool            `json:"lab_1_week_enabled"`
	LabPrep          LabPrepSettings `json:"lab_prep"`
}

// State is the full tracker aggregate. The store owns it exclusively; the
// UI layer holds only transient form buffers. It is serialized as one
// JSON unit after every mutation, with dates round-tripping as RFC 3339.
//
// The last-dose fields are denormalized projections of the
// maximum-timestamp entry in Doses; the log itself is the source of
// truth.
type State struct {
	Config   Config        `json:"config"`
	Schedule schedule.Spec `json:"schedule"`
	DoseTime string        `json:"dose_time"`

	LastDoseDate   *time.Time `json:"last_dose_date"`
	LastDoseAmount string     `json:"last_dose_amount,omitempty"`
	LastDoseUnit   string     `json:"last_dose_unit,omitempty"`
	LastDoseSite   string     `json:"last_dose_site,omitempty"`

	LabDate *time.Time `json:"lab_date"`
	LabTime string     `json:"lab_time"`

	Reminders  ReminderSettings `json:"reminders"`
	Doses      []DoseEntry      `json:"doses"`
	LabResults []labs.Result    `json:"lab_results"`
}

// DefaultState seeds a first-use aggregate so the application never
// renders with an undefined schedule.
func DefaultState() State {
	return State{
		Config: Config{
			Name:    "Testosterone cypionate IM",
			MedType: MedInjection,
		},
		Schedule: schedule.Spec{
			Mode:         schedule.ModeWeekly,
			WeeklyDays:   []time.Weekday{time.Monday, time.Thursday},
			IntervalDays: 3,
		},
		DoseTime: "09:00",
		LabTime:  "08:00",
		Reminders: ReminderSettings{
			DoseEnabled:      true,
			DoseOffsetDays:   2,
			LabEnabled:       true,
			Lab2WeeksEnabled: true,
			Lab1WeekEnabled:  true,
			LabPrep: LabPrepSettings{
				HydrationEnabled:      true,
				HydrationLeadDays:     7,
				DoseWarning48hEnabled: true,
			},
		},
	}
}

// ConfigPatch is a typed partial update for the config fields. Nil fields
// are left untouched.
type ConfigPatch struct {
	Name     *string  `json:"name,omitempty"`
	MedType  *MedType `json:"med_type,omitempty"`
	DoseTime *string  `json:"dose_time,omitempty"`
	LabTime  *string  `json:"lab_time,omitempty"`
}

// SchedulePatch is a typed partial update for the schedule spec. Setting
// Mode swaps the active variant wholesale; the other fields adjust the
// variant in place. ClearCustomInterval removes the custom override.
type SchedulePatch struct {
	Mode                *schedule.Mode  `json:"mode,omitempty"`
	WeeklyDays          *[]time.Weekday `json:"weekly_days,omitempty"`
	IntervalDays        *float64        `json:"interval_days,omitempty"`
	CustomIntervalDays  *float64        `json:"custom_interval_days,omitempty"`
	ClearCustomInterval bool            `json:"clear_custom_interval,omitempty"`
}

// ReminderPatch is a typed partial update for reminder settings.
type ReminderPatch struct {
	DoseEnabled           *bool `json:"dose_enabled,omitempty"`
	DoseOffsetDays        *int  `json:"dose_offset_days,omitempty"`
	LabEnabled            *bool `json:"lab_enabled,omitempty"`
	Lab2WeeksEnabled      *bool `json:"lab_2_weeks_enabled,omitempty"`
	Lab1WeekEnabled       *bool `json:"lab_1_week_enabled,omitempty"`
	HydrationEnabled      *bool `json:"hydration_enabled,omitempty"`
	HydrationLeadDays     *int  `json:"hydration_lead_days,omitempty"`
	DoseWarning48hEnabled *bool `json:"dose_warning_48h_enabled,omitempty"`
}

// DoseInput is a dose entry minus its timestamp; the store stamps "now".
type DoseInput struct {
	Amount string `json:"amount,omitempty"`
	Unit   string `json:"unit,omitempty"`
	Site   string `json:"site,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// LabInput is a lab result minus its id and DPD; the store snapshots DPD
// from the last dose in effect at creation time.
type LabInput struct {
	Date      time.Time `json:"date"`
	Biomarker string    `json:"biomarker,omitempty"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Notes     string    `json:"notes,omitempty"`
}

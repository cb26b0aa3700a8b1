package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/protocol/protocol/internal/domain/labs"
	"github.com/protocol/protocol/internal/domain/schedule"
	"github.com/protocol/protocol/internal/platform/kv"
	"github.com/protocol/protocol/internal/platform/metrics"
	"github.com/protocol/protocol/pkg/dateutil"
)

// Storage slot names. The state slot carries a version suffix that must be
// bumped on any incompatible schema change; v7 matches the current shape.
const (
	StateSlot = "protocol-tracker-state-v7"
	ThemeSlot = "protocol-theme-v1"
)

// Store is the single authoritative aggregate for one user's tracker
// state. Every mutation is applied in memory first and then serialized to
// the KV slot as one unit. Persistence failures are logged and non-fatal:
// the in-memory state keeps serving the session.
//
// Concurrent access from multiple processes sharing a slot is
// last-writer-wins at whole-state granularity; no cross-instance merge is
// attempted.
type Store struct {
	mu     sync.Mutex
	userID string
	state  State
	kv     kv.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore loads the user's persisted state, falling back to the seeded
// default when no slot exists or the payload cannot be decoded.
func NewStore(ctx context.Context, kvStore kv.Store, userID string, logger zerolog.Logger) *Store {
	s := &Store{
		userID: userID,
		kv:     kvStore,
		logger: logger.With().Str("user_id", userID).Logger(),
		now:    time.Now,
	}
	s.state = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) State {
	raw, err := s.kv.Get(ctx, s.userID, StateSlot)
	if errors.Is(err, kv.ErrNotFound) {
		return DefaultState()
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load tracker state; using defaults")
		return DefaultState()
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		s.logger.Warn().Err(err).Msg("failed to decode tracker state; using defaults")
		return DefaultState()
	}
	return st
}

// persist serializes the whole aggregate. Must be called with the lock
// held. Failures are reported to the logger, never to the caller.
func (s *Store) persist(ctx context.Context) {
	raw, err := json.Marshal(s.state)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode tracker state")
		return
	}
	if err := s.kv.Put(ctx, s.userID, StateSlot, raw); err != nil {
		metrics.StatePersistFailures.Inc()
		s.logger.Warn().Err(err).Msg("failed to persist tracker state; in-memory state remains authoritative")
	}
}

// Snapshot returns a copy of the current aggregate.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyState()
}

func (s *Store) copyState() State {
	st := s.state
	st.Doses = append([]DoseEntry(nil), s.state.Doses...)
	st.LabResults = append([]labs.Result(nil), s.state.LabResults...)
	st.Schedule.WeeklyDays = append([]time.Weekday(nil), s.state.Schedule.WeeklyDays...)
	return st
}

// UpdateConfig applies a typed config patch.
func (s *Store) UpdateConfig(ctx context.Context, p ConfigPatch) error {
	if p.MedType != nil && !validMedTypes[*p.MedType] {
		return fmt.Errorf("invalid med type: %s", *p.MedType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Name != nil {
		s.state.Config.Name = *p.Name
	}
	if p.MedType != nil {
		s.state.Config.MedType = *p.MedType
	}
	if p.DoseTime != nil {
		s.state.DoseTime = *p.DoseTime
	}
	if p.LabTime != nil {
		s.state.LabTime = *p.LabTime
	}
	s.persist(ctx)
	return nil
}

// UpdateSchedule applies a typed schedule patch. An empty weekly day set
// is legal but inert. Switching mode leaves the other variant's fields in
// place so switching back restores them.
func (s *Store) UpdateSchedule(ctx context.Context, p SchedulePatch) error {
	if p.Mode != nil && *p.Mode != schedule.ModeWeekly && *p.Mode != schedule.ModeInterval {
		return fmt.Errorf("invalid schedule mode: %s", *p.Mode)
	}
	if p.IntervalDays != nil && *p.IntervalDays <= 0 {
		return fmt.Errorf("interval days must be positive, got %v", *p.IntervalDays)
	}
	if p.CustomIntervalDays != nil && *p.CustomIntervalDays <= 0 {
		return fmt.Errorf("custom interval days must be positive, got %v", *p.CustomIntervalDays)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Mode != nil {
		s.state.Schedule.Mode = *p.Mode
	}
	if p.WeeklyDays != nil {
		s.state.Schedule.WeeklyDays = append([]time.Weekday(nil), (*p.WeeklyDays)...)
	}
	if p.IntervalDays != nil {
		s.state.Schedule.IntervalDays = *p.IntervalDays
	}
	if p.CustomIntervalDays != nil {
		v := *p.CustomIntervalDays
		s.state.Schedule.CustomIntervalDays = &v
	}
	if p.ClearCustomInterval {
		s.state.Schedule.CustomIntervalDays = nil
	}
	s.persist(ctx)
	return nil
}

// UpdateReminders applies a typed reminder patch.
func (s *Store) UpdateReminders(ctx context.Context, p ReminderPatch) error {
	if p.DoseOffsetDays != nil && (*p.DoseOffsetDays < 0 || *p.DoseOffsetDays > 2) {
		return fmt.Errorf("dose reminder offset must be 0-2 days, got %d", *p.DoseOffsetDays)
	}
	if p.HydrationLeadDays != nil {
		valid := false
		for _, opt := range HydrationLeadOptions {
			if *p.HydrationLeadDays == opt {
				valid = true
			}
		}
		if !valid {
			return fmt.Errorf("hydration lead days must be one of %v, got %d", HydrationLeadOptions, *p.HydrationLeadDays)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r := &s.state.Reminders
	if p.DoseEnabled != nil {
		r.DoseEnabled = *p.DoseEnabled
	}
	if p.DoseOffsetDays != nil {
		r.DoseOffsetDays = *p.DoseOffsetDays
	}
	if p.LabEnabled != nil {
		r.LabEnabled = *p.LabEnabled
	}
	if p.Lab2WeeksEnabled != nil {
		r.Lab2WeeksEnabled = *p.Lab2WeeksEnabled
	}
	if p.Lab1WeekEnabled != nil {
		r.Lab1WeekEnabled = *p.Lab1WeekEnabled
	}
	if p.HydrationEnabled != nil {
		r.LabPrep.HydrationEnabled = *p.HydrationEnabled
	}
	if p.HydrationLeadDays != nil {
		r.LabPrep.HydrationLeadDays = *p.HydrationLeadDays
	}
	if p.DoseWarning48hEnabled != nil {
		r.LabPrep.DoseWarning48hEnabled = *p.DoseWarning48hEnabled
	}
	s.persist(ctx)
	return nil
}

// SetLabDate sets or clears the upcoming lab draw date.
func (s *Store) SetLabDate(ctx context.Context, date *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if date != nil {
		d := dateutil.DateOnly(*date)
		s.state.LabDate = &d
	} else {
		s.state.LabDate = nil
	}
	s.persist(ctx)
}

// LogDose stamps the entry with the current time, appends it to the dose
// log, and refreshes the denormalized last-dose fields directly from the
// new entry. The unit falls back to the previous one when omitted,
// matching the entry form's sticky unit behavior.
func (s *Store) LogDose(ctx context.Context, in DoseInput) (DoseEntry, error) {
	if in.Unit != "" && !validDoseUnits[in.Unit] {
		return DoseEntry{}, fmt.Errorf("invalid dose unit: %s", in.Unit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := DoseEntry{
		Timestamp: now,
		Amount:    in.Amount,
		Unit:      in.Unit,
		Site:      in.Site,
		Notes:     in.Notes,
	}
	s.state.Doses = append(s.state.Doses, entry)

	s.state.LastDoseDate = &entry.Timestamp
	s.state.LastDoseAmount = entry.Amount
	s.state.LastDoseSite = entry.Site
	if entry.Unit != "" {
		s.state.LastDoseUnit = entry.Unit
	}

	s.persist(ctx)
	return entry, nil
}

// AddLabResult validates the input, snapshots DPD from the current
// last-dose date, and appends the result. The DPD is fixed at creation
// time; later dose logs do not rewrite it.
func (s *Store) AddLabResult(ctx context.Context, in LabInput) (labs.Result, error) {
	if in.Date.IsZero() {
		return labs.Result{}, fmt.Errorf("lab date is required")
	}
	if in.Value <= 0 {
		return labs.Result{}, fmt.Errorf("lab value must be positive, got %v", in.Value)
	}
	if in.Unit == "" {
		return labs.Result{}, fmt.Errorf("lab unit is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := labs.NewResult(s.state.LastDoseDate, in.Date, in.Biomarker, in.Value, in.Unit, in.Notes)
	s.state.LabResults = append(s.state.LabResults, result)
	s.persist(ctx)
	return result, nil
}

// DeleteLabResult removes the result with the given id. Deleting an
// absent id is a benign no-op, not an error.
func (s *Store) DeleteLabResult(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("lab result id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.state.LabResults {
		if r.ID == id {
			s.state.LabResults = append(s.state.LabResults[:i], s.state.LabResults[i+1:]...)
			s.persist(ctx)
			return nil
		}
	}
	return nil
}

// -- Derived read-only queries --

// NextDoseDate delegates to the schedule engine against current state.
func (s *Store) NextDoseDate() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return schedule.NextDoseDate(s.state.Schedule, s.state.LastDoseDate, s.now())
}

// IsTodayDoseDay reports whether today is a scheduled dose day.
func (s *Store) IsTodayDoseDay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return schedule.IsTodayDoseDay(s.state.Schedule, s.state.LastDoseDate, s.now())
}

// UpcomingDoses returns the next n scheduled dose dates.
func (s *Store) UpcomingDoses(n int) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return schedule.UpcomingDoses(s.state.Schedule, s.state.LastDoseDate, s.now(), n)
}

// CurrentDPD returns the DPD of the configured lab date against the last
// dose, or nil when either is missing or the draw precedes the dose.
func (s *Store) CurrentDPD() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.LabDate == nil {
		return nil
	}
	return labs.DaysPostDose(s.state.LastDoseDate, *s.state.LabDate)
}

// DPDBuckets groups the stored lab results by DPD.
func (s *Store) DPDBuckets() []labs.Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return labs.GroupByDPD(s.state.LabResults)
}

// VarianceTightness classifies the spread of the DPD buckets.
func (s *Store) VarianceTightness() labs.Tightness {
	return labs.ClassifyTightness(labs.AverageStdDev(s.DPDBuckets()))
}

// -- Theme preference (separate slot, same substrate) --

type themePrefs struct {
	Theme string `json:"theme"`
}

// Theme returns the persisted theme preference, or empty when unset.
func (s *Store) Theme(ctx context.Context) string {
	raw, err := s.kv.Get(ctx, s.userID, ThemeSlot)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("failed to load theme preference")
		}
		return ""
	}
	var p themePrefs
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	return p.Theme
}

// SetTheme persists the theme preference. Failures are non-fatal.
func (s *Store) SetTheme(ctx context.Context, theme string) {
	raw, _ := json.Marshal(themePrefs{Theme: theme})
	if err := s.kv.Put(ctx, s.userID, ThemeSlot, raw); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist theme preference")
	}
}

// Manager hands out one Store per user, constructed lazily on first use.
type Manager struct {
	mu     sync.Mutex
	stores map[string]*Store
	kv     kv.Store
	logger zerolog.Logger
}

func NewManager(kvStore kv.Store, logger zerolog.Logger) *Manager {
	return &Manager{
		stores: make(map[string]*Store),
		kv:     kvStore,
		logger: logger,
	}
}

// ForUser returns the user's store, loading persisted state on first
// access in this process.
func (m *Manager) ForUser(ctx context.Context, userID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[userID]; ok {
		return s
	}
	s := NewStore(ctx, m.kv, userID, m.logger)
	m.stores[userID] = s
	return s
}

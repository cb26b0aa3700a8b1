// Package labs normalizes lab results onto the dosing cycle. The key idea
// is DPD (days post dose): the whole-day offset between the last dose and
// the lab draw. Grouping results by DPD makes values drawn at the same
// point in the cycle comparable across months of history.
package labs

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/protocol/protocol/pkg/dateutil"
)

// DefaultBiomarker is the only biomarker tracked today.
const DefaultBiomarker = "Total Testosterone"

// Result is a single lab draw. DPD is snapshotted when the result is
// created from the last-dose date in effect at that moment; it is nil when
// no dose was known or the draw preceded the dose.
type Result struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Biomarker string    `json:"biomarker"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	DPD       *int      `json:"dpd"`
	Notes     string    `json:"notes,omitempty"`
}

// NewResult stamps a fresh id and snapshots DPD against lastDose.
func NewResult(lastDose *time.Time, date time.Time, biomarker string, value float64, unit, notes string) Result {
	if biomarker == "" {
		biomarker = DefaultBiomarker
	}
	return Result{
		ID:        uuid.New().String(),
		Date:      dateutil.DateOnly(date),
		Biomarker: biomarker,
		Value:     value,
		Unit:      unit,
		DPD:       DaysPostDose(lastDose, date),
		Notes:     notes,
	}
}

// DaysPostDose returns the non-negative whole-day count from lastDose to
// sample, or nil when no dose is known or the sample precedes the dose.
// DPD is undefined in that case, never negative.
func DaysPostDose(lastDose *time.Time, sample time.Time) *int {
	if lastDose == nil {
		return nil
	}
	dose := dateutil.DateOnly(*lastDose)
	draw := dateutil.DateOnly(sample)
	if dose.After(draw) {
		return nil
	}
	d := dateutil.DaysBetween(dose, draw)
	return &d
}

// Bucket aggregates all results sharing an exact DPD value. Mean is kept
// at full precision; rounding is left to display code.
type Bucket struct {
	DPD         int     `json:"dpd"`
	Mean        float64 `json:"mean"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	StdDev      float64 `json:"std_dev"`
	SampleCount int     `json:"sample_count"`
}

// GroupByDPD buckets results by exact DPD value and aggregates each
// bucket. Results without a DPD are skipped. Output is sorted ascending by
// DPD. StdDev is the population standard deviation (divide by n) and zero
// for single-sample buckets.
func GroupByDPD(results []Result) []Bucket {
	groups := make(map[int][]float64)
	for _, r := range results {
		if r.DPD == nil {
			continue
		}
		groups[*r.DPD] = append(groups[*r.DPD], r.Value)
	}

	buckets := make([]Bucket, 0, len(groups))
	for dpd, values := range groups {
		b := Bucket{DPD: dpd, Min: values[0], Max: values[0], SampleCount: len(values)}
		var sum float64
		for _, v := range values {
			sum += v
			if v < b.Min {
				b.Min = v
			}
			if v > b.Max {
				b.Max = v
			}
		}
		b.Mean = sum / float64(len(values))
		if len(values) > 1 {
			var sq float64
			for _, v := range values {
				d := v - b.Mean
				sq += d * d
			}
			b.StdDev = math.Sqrt(sq / float64(len(values)))
		}
		buckets = append(buckets, b)
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].DPD < buckets[j].DPD })
	return buckets
}

// Tightness classifies how consistent values are across the dosing cycle.
type Tightness string

const (
	TightnessTight    Tightness = "tight"
	TightnessModerate Tightness = "moderate"
	TightnessWide     Tightness = "wide"
)

// Classification thresholds on the average per-bucket standard deviation.
const (
	TightnessThresholdTight    = 50.0
	TightnessThresholdModerate = 100.0
)

// AverageStdDev returns the mean of the per-bucket standard deviations, or
// zero when there are no buckets.
func AverageStdDev(buckets []Bucket) float64 {
	if len(buckets) == 0 {
		return 0
	}
	var sum float64
	for _, b := range buckets {
		sum += b.StdDev
	}
	return sum / float64(len(buckets))
}

// ClassifyTightness maps an average standard deviation onto a variance
// rating. This is a presentation concern layered on the numeric output,
// but the thresholds live here as named constants so they are testable.
func ClassifyTightness(avgStdDev float64) Tightness {
	switch {
	case avgStdDev <= TightnessThresholdTight:
		return TightnessTight
	case avgStdDev <= TightnessThresholdModerate:
		return TightnessModerate
	default:
		return TightnessWide
	}
}

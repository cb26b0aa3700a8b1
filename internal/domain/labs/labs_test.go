package labs

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func ptr(t time.Time) *time.Time { return &t }

func TestDaysPostDose(t *testing.T) {
	lastDose := date(2025, time.January, 5)

	got := DaysPostDose(ptr(lastDose), date(2025, time.January, 10))
	if got == nil || *got != 5 {
		t.Errorf("lab Jan 10, dose Jan 5: dpd = %v, want 5", got)
	}

	if got := DaysPostDose(ptr(lastDose), date(2025, time.January, 3)); got != nil {
		t.Errorf("lab before dose: dpd = %d, want nil", *got)
	}

	if got := DaysPostDose(nil, date(2025, time.January, 10)); got != nil {
		t.Errorf("no last dose: dpd = %d, want nil", *got)
	}

	if got := DaysPostDose(ptr(lastDose), lastDose); got == nil || *got != 0 {
		t.Errorf("same day: dpd = %v, want 0", got)
	}

	// Time-of-day must not matter.
	morningDose := time.Date(2025, time.January, 5, 23, 0, 0, 0, time.Local)
	eveningDraw := time.Date(2025, time.January, 6, 1, 0, 0, 0, time.Local)
	if got := DaysPostDose(ptr(morningDose), eveningDraw); got == nil || *got != 1 {
		t.Errorf("date-only comparison: dpd = %v, want 1", got)
	}
}

func TestDaysPostDose_NeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := date(2024, time.January, 1)

	for i := 0; i < 500; i++ {
		dose := base.AddDate(0, 0, rng.Intn(365))
		sample := base.AddDate(0, 0, rng.Intn(365))
		got := DaysPostDose(ptr(dose), sample)
		if sample.Before(dose) {
			if got != nil {
				t.Fatalf("dose=%v sample=%v: dpd = %d, want nil", dose, sample, *got)
			}
			continue
		}
		if got == nil || *got < 0 {
			t.Fatalf("dose=%v sample=%v: dpd = %v, want non-negative", dose, sample, got)
		}
	}
}

func dpdResult(dpd int, value float64) Result {
	return Result{ID: "x", Date: date(2025, time.January, 1), Biomarker: DefaultBiomarker, Value: value, Unit: "ng/dL", DPD: &dpd}
}

func TestGroupByDPD_SingleBucketAggregates(t *testing.T) {
	results := []Result{
		dpdResult(2, 600),
		dpdResult(2, 650),
		dpdResult(2, 700),
	}

	buckets := GroupByDPD(results)
	if len(buckets) != 1 {
		t.Fatalf("got %d buckets, want 1", len(buckets))
	}
	b := buckets[0]
	if b.DPD != 2 || b.SampleCount != 3 {
		t.Errorf("bucket = %+v, want dpd=2 n=3", b)
	}
	if b.Mean != 650 || b.Min != 600 || b.Max != 700 {
		t.Errorf("mean/min/max = %v/%v/%v, want 650/600/700", b.Mean, b.Min, b.Max)
	}
	if math.Abs(b.StdDev-40.824829) > 1e-5 {
		t.Errorf("stdDev = %v, want ~40.82 (population)", b.StdDev)
	}
}

func TestGroupByDPD_SkipsNilAndSorts(t *testing.T) {
	results := []Result{
		dpdResult(4, 700),
		{ID: "no-dpd", Value: 900}, // nil DPD is excluded
		dpdResult(1, 920),
		dpdResult(4, 680),
		dpdResult(2, 850),
	}

	buckets := GroupByDPD(results)
	if len(buckets) != 3 {
		t.Fatalf("got %d buckets, want 3", len(buckets))
	}
	seen := map[int]bool{}
	for i, b := range buckets {
		if seen[b.DPD] {
			t.Errorf("duplicate dpd key %d", b.DPD)
		}
		seen[b.DPD] = true
		if i > 0 && buckets[i-1].DPD >= b.DPD {
			t.Errorf("buckets not sorted ascending: %d before %d", buckets[i-1].DPD, b.DPD)
		}
	}
	if buckets[0].DPD != 1 || buckets[1].DPD != 2 || buckets[2].DPD != 4 {
		t.Errorf("bucket order = %v,%v,%v, want 1,2,4", buckets[0].DPD, buckets[1].DPD, buckets[2].DPD)
	}
}

func TestGroupByDPD_SingleSampleHasZeroStdDev(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var results []Result
	for i := 0; i < 50; i++ {
		results = append(results, dpdResult(i, float64(rng.Intn(1000))))
	}

	for _, b := range GroupByDPD(results) {
		if b.SampleCount != 1 {
			t.Fatalf("expected singleton buckets, got n=%d", b.SampleCount)
		}
		if b.StdDev != 0 {
			t.Errorf("dpd=%d: stdDev = %v, want 0 for n=1", b.DPD, b.StdDev)
		}
	}
}

func TestNewResult_SnapshotsDPD(t *testing.T) {
	lastDose := date(2025, time.January, 5)
	r := NewResult(ptr(lastDose), date(2025, time.January, 10), "", 750, "ng/dL", "")

	if r.ID == "" {
		t.Error("expected generated id")
	}
	if r.Biomarker != DefaultBiomarker {
		t.Errorf("biomarker = %q, want default", r.Biomarker)
	}
	if r.DPD == nil || *r.DPD != 5 {
		t.Errorf("dpd = %v, want 5", r.DPD)
	}

	r = NewResult(ptr(lastDose), date(2025, time.January, 3), "", 750, "ng/dL", "")
	if r.DPD != nil {
		t.Errorf("pre-dose draw: dpd = %d, want nil", *r.DPD)
	}
}

func TestClassifyTightness(t *testing.T) {
	cases := []struct {
		avg  float64
		want Tightness
	}{
		{0, TightnessTight},
		{50, TightnessTight},
		{50.01, TightnessModerate},
		{100, TightnessModerate},
		{100.01, TightnessWide},
		{400, TightnessWide},
	}
	for _, tc := range cases {
		if got := ClassifyTightness(tc.avg); got != tc.want {
			t.Errorf("ClassifyTightness(%v) = %v, want %v", tc.avg, got, tc.want)
		}
	}
}

func TestAverageStdDev(t *testing.T) {
	if got := AverageStdDev(nil); got != 0 {
		t.Errorf("no buckets: avg = %v, want 0", got)
	}
	buckets := []Bucket{{StdDev: 30}, {StdDev: 60}, {StdDev: 90}}
	if got := AverageStdDev(buckets); got != 60 {
		t.Errorf("avg = %v, want 60", got)
	}
}

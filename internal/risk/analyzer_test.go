package risk

import (
	"reflect"
	"testing"
	"time"

	"github.com/ppiankov/journeywatch/internal/model"
	"github.com/ppiankov/journeywatch/internal/zone"
)

var (
	safeCenter   = model.Location{Lat: 23.02, Lng: 72.57}
	unsafeCenter = model.Location{Lat: 23.05, Lng: 72.60}
	nowhere      = model.Location{Lat: 0, Lng: 0}
)

func newAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	return NewAnalyzer(zone.NewClassifier(zone.DefaultZones), opts)
}

func sampleAt(hour int, loc model.Location, speed float64, battery int) model.TelemetrySample {
	return model.TelemetrySample{
		JourneyID:     "j-1",
		Timestamp:     time.Date(2026, 3, 1, hour, 15, 0, 0, time.UTC),
		Location:      loc,
		Speed:         speed,
		MovementState: model.Walking,
		BatteryLevel:  battery,
	}
}

func TestAnalyzeNightIsolatedStalledLowBattery(t *testing.T) {
	a := newAnalyzer(t, Options{})
	got := a.Analyze(sampleAt(23, nowhere, 0.05, 5))

	want := model.FactorSet{model.NightTime, model.IsolatedArea, model.SpeedAnomaly, model.LowBattery}
	if !reflect.DeepEqual(got.Factors, want) {
		t.Errorf("factors = %v, want %v", got.Factors, want)
	}
	if got.Score != 0.85 {
		t.Errorf("score = %v, want 0.85", got.Score)
	}
	if got.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", got.Confidence)
	}
	if got.Level != model.RiskCritical {
		t.Errorf("level = %s, want CRITICAL", got.Level)
	}
}

func TestAnalyzeDaytimeInsideSafeZone(t *testing.T) {
	a := newAnalyzer(t, Options{})
	got := a.Analyze(sampleAt(14, safeCenter, 1.2, 80))

	if len(got.Factors) != 0 {
		t.Errorf("expected no factors, got %v", got.Factors)
	}
	if got.Score != 0 || got.Confidence != 0 {
		t.Errorf("expected zero score, got %v/%v", got.Score, got.Confidence)
	}
	if got.Level != model.RiskLow {
		t.Errorf("level = %s, want LOW", got.Level)
	}
}

func TestAnalyzeCountsLocationWeightTwice(t *testing.T) {
	a := newAnalyzer(t, Options{})
	got := a.Analyze(sampleAt(12, unsafeCenter, 1.2, 80))

	if !reflect.DeepEqual(got.Factors, model.FactorSet{model.IsolatedArea}) {
		t.Fatalf("expected single collapsed factor, got %v", got.Factors)
	}
	if got.Score != 0.4 {
		t.Errorf("score = %v, want 0.4 (both location detectors)", got.Score)
	}
	if got.Level != model.RiskMedium {
		t.Errorf("level = %s, want MEDIUM", got.Level)
	}
}

func TestAnalyzeDedupLocationWeight(t *testing.T) {
	a := newAnalyzer(t, Options{DedupLocationWeight: true})
	got := a.Analyze(sampleAt(12, unsafeCenter, 1.2, 80))

	if got.Score != 0.2 {
		t.Errorf("score = %v, want 0.2", got.Score)
	}
	if got.Level != model.RiskLow {
		t.Errorf("level = %s, want LOW", got.Level)
	}
}

func TestNightHours(t *testing.T) {
	a := newAnalyzer(t, Options{})
	for hour := 0; hour < 24; hour++ {
		got := a.Analyze(sampleAt(hour, safeCenter, 1.2, 80))
		wantNight := hour >= 21 || hour <= 6
		if got.Factors.Has(model.NightTime) != wantNight {
			t.Errorf("hour %d: night=%v, want %v", hour, !wantNight, wantNight)
		}
	}
}

func TestNightUsesDeviceClockByDefault(t *testing.T) {
	a := newAnalyzer(t, Options{})
	ist := time.FixedZone("IST", 5*3600+1800)
	s := sampleAt(12, safeCenter, 1.2, 80)
	// 23:00+05:30 is 17:30 UTC.
	s.Timestamp = time.Date(2024, 1, 1, 23, 0, 0, 0, ist)

	got := a.Analyze(s)
	if !got.Factors.Has(model.NightTime) {
		t.Errorf("expected night_time for 23:00 device time, got %v", got.Factors)
	}

	// 14:00+05:30 is 08:30 UTC on the same day; neither clock is night.
	s.Timestamp = time.Date(2024, 1, 1, 14, 0, 0, 0, ist)
	if got := a.Analyze(s); got.Factors.Has(model.NightTime) {
		t.Errorf("unexpected night_time for 14:00 device time: %v", got.Factors)
	}
}

func TestNightUsesConfiguredClock(t *testing.T) {
	// 14:15 UTC is 22:15 at UTC+8.
	a := newAnalyzer(t, Options{Location: time.FixedZone("UTC+8", 8*3600)})
	got := a.Analyze(sampleAt(14, safeCenter, 1.2, 80))
	if !got.Factors.Has(model.NightTime) {
		t.Errorf("expected night in UTC+8, got %v", got.Factors)
	}
}

func TestSpeedBounds(t *testing.T) {
	a := newAnalyzer(t, Options{})
	tests := []struct {
		speed float64
		want  bool
	}{
		{0, true},
		{0.09, true},
		{0.1, false},
		{15, false},
		{15.01, true},
		{40, true},
	}
	for _, tt := range tests {
		got := a.Analyze(sampleAt(12, safeCenter, tt.speed, 80))
		if got.Factors.Has(model.SpeedAnomaly) != tt.want {
			t.Errorf("speed %v: anomaly=%v, want %v", tt.speed, !tt.want, tt.want)
		}
	}
}

func TestBatteryBound(t *testing.T) {
	a := newAnalyzer(t, Options{})
	if !a.Analyze(sampleAt(12, safeCenter, 1.2, 9)).Factors.Has(model.LowBattery) {
		t.Error("9% should be low battery")
	}
	if a.Analyze(sampleAt(12, safeCenter, 1.2, 10)).Factors.Has(model.LowBattery) {
		t.Error("10% should not be low battery")
	}
}

func TestMovementHookDefaultsToNoop(t *testing.T) {
	a := newAnalyzer(t, Options{})
	for _, m := range []model.MovementState{model.Walking, model.Running, model.Driving, model.Cycling, model.Stationary} {
		s := sampleAt(12, safeCenter, 1.2, 80)
		s.MovementState = m
		if got := a.Analyze(s); got.Factors.Has(model.RouteDeviation) {
			t.Errorf("%s: default movement hook fired", m)
		}
	}
}

func TestMovementHookContributes(t *testing.T) {
	a := newAnalyzer(t, Options{Movement: func(s *model.TelemetrySample) bool {
		return s.MovementState == model.Stationary
	}})
	s := sampleAt(12, safeCenter, 1.2, 80)
	s.MovementState = model.Stationary

	got := a.Analyze(s)
	if !got.Factors.Has(model.RouteDeviation) || got.Score != 0.15 {
		t.Errorf("expected route deviation at 0.15, got %v %v", got.Factors, got.Score)
	}
}

func TestConfidenceClamped(t *testing.T) {
	// Every detector fires: 30+20+20+20+15+15 = 120.
	a := NewAnalyzer(zone.NewClassifier(zone.Zones{
		Unsafe: []zone.GeoZone{{Name: "x", Center: nowhere, RadiusM: 500}},
	}), Options{Movement: func(*model.TelemetrySample) bool { return true }})

	got := a.Analyze(sampleAt(2, nowhere, 0, 1))
	if got.Score != 1.2 {
		t.Errorf("score = %v, want 1.2", got.Score)
	}
	if got.Confidence != 1 {
		t.Errorf("confidence = %v, want 1", got.Confidence)
	}
	if got.Level != model.RiskCritical {
		t.Errorf("level = %s", got.Level)
	}
}

func TestConfidenceWithinBounds(t *testing.T) {
	a := newAnalyzer(t, Options{})
	for hour := 0; hour < 24; hour += 3 {
		for _, loc := range []model.Location{safeCenter, unsafeCenter, nowhere} {
			for _, speed := range []float64{0, 1, 20} {
				for _, battery := range []int{0, 50, 100} {
					c := a.Analyze(sampleAt(hour, loc, speed, battery)).Confidence
					if c < 0 || c > 1 {
						t.Fatalf("confidence %v out of [0,1]", c)
					}
				}
			}
		}
	}
}

func TestLevelForMonotonic(t *testing.T) {
	prev := LevelFor(0)
	for p := 1; p <= 150; p++ {
		cur := LevelFor(p)
		if !cur.AtLeast(prev) {
			t.Fatalf("level decreased at %d: %s -> %s", p, prev, cur)
		}
		prev = cur
	}

	boundaries := map[int]model.RiskLevel{
		29: model.RiskLow, 30: model.RiskMedium,
		49: model.RiskMedium, 50: model.RiskHigh,
		69: model.RiskHigh, 70: model.RiskCritical,
	}
	for p, want := range boundaries {
		if got := LevelFor(p); got != want {
			t.Errorf("LevelFor(%d) = %s, want %s", p, got, want)
		}
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := newAnalyzer(t, Options{})
	s := sampleAt(22, nowhere, 20, 50)
	first := a.Analyze(s)
	for i := 0; i < 10; i++ {
		if got := a.Analyze(s); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
	if !first.Timestamp.Equal(s.Timestamp) {
		t.Errorf("assessment timestamp %v, want sample timestamp", first.Timestamp)
	}
}

func TestExplainListsFiredDetectors(t *testing.T) {
	a := newAnalyzer(t, Options{DedupLocationWeight: true})
	got := a.Explain(sampleAt(23, unsafeCenter, 1.2, 80))

	want := []Contribution{
		{Detector: "time", Factor: model.NightTime, Weight: WeightNight},
		{Detector: "isolation", Factor: model.IsolatedArea, Weight: WeightIsolation},
		{Detector: "unsafe_zone", Factor: model.IsolatedArea, Weight: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Explain = %+v, want %+v", got, want)
	}
}

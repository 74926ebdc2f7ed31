// Package risk scores a single telemetry sample against a fixed set of
// independent detectors.
package risk

import (
	"time"

	"github.com/ppiankov/journeywatch/internal/model"
	"github.com/ppiankov/journeywatch/internal/zone"
)

// Detector weights in hundredths of a score point. Integer arithmetic keeps
// level boundaries exact: 0.30+0.20+0.20 is 70, not 0.7000000000000001.
const (
	WeightNight      = 30
	WeightIsolation  = 20
	WeightUnsafeZone = 20
	WeightSpeed      = 20
	WeightBattery    = 15
	WeightMovement   = 15
)

// Level thresholds, same scale as the weights.
const (
	ThresholdCritical = 70
	ThresholdHigh     = 50
	ThresholdMedium   = 30
)

// Speed and battery bounds.
const (
	MinMovingSpeed = 0.1  // m/s
	MaxSafeSpeed   = 15.0 // m/s
	LowBatteryPct  = 10
)

// MovementHook inspects a sample's movement state. It is the extension point
// for history-aware movement analysis; the default never fires.
type MovementHook func(s *model.TelemetrySample) bool

// Options configure an Analyzer.
type Options struct {
	// Location, when set, converts sample timestamps before the night
	// detector reads the hour. Nil reads the hour exactly as the device
	// stamped it, offset included.
	Location *time.Location
	// DedupLocationWeight counts the isolation and unsafe-zone weights once
	// when both fire, since they share the ISOLATED_AREA factor.
	DedupLocationWeight bool
	// Movement replaces the no-op movement-state hook.
	Movement MovementHook
}

// Contribution is one detector that fired for a sample.
type Contribution struct {
	Detector string           `json:"detector"`
	Factor   model.RiskFactor `json:"factor"`
	Weight   int              `json:"weight"`
}

// Analyzer is safe for concurrent use; it holds only read-only configuration.
type Analyzer struct {
	zones     *zone.Classifier
	loc       *time.Location
	dedupLoc  bool
	movement  MovementHook
	detectors []detector
}

type detector struct {
	name   string
	factor model.RiskFactor
	weight int
	fires  func(a *Analyzer, s *model.TelemetrySample) bool
}

// detectors run in this order; factor insertion order follows it.
var defaultDetectors = []detector{
	{"time", model.NightTime, WeightNight, (*Analyzer).isNight},
	{"isolation", model.IsolatedArea, WeightIsolation, func(a *Analyzer, s *model.TelemetrySample) bool {
		return a.zones.IsIsolated(s.Location)
	}},
	{"unsafe_zone", model.IsolatedArea, WeightUnsafeZone, func(a *Analyzer, s *model.TelemetrySample) bool {
		return a.zones.IsNearUnsafeZone(s.Location)
	}},
	{"speed", model.SpeedAnomaly, WeightSpeed, func(_ *Analyzer, s *model.TelemetrySample) bool {
		return s.Speed < MinMovingSpeed || s.Speed > MaxSafeSpeed
	}},
	{"battery", model.LowBattery, WeightBattery, func(_ *Analyzer, s *model.TelemetrySample) bool {
		return s.BatteryLevel < LowBatteryPct
	}},
	{"movement", model.RouteDeviation, WeightMovement, func(a *Analyzer, s *model.TelemetrySample) bool {
		return a.movement(s)
	}},
}

// NewAnalyzer creates an analyzer over the given zone classifier.
func NewAnalyzer(zones *zone.Classifier, opts Options) *Analyzer {
	movement := opts.Movement
	if movement == nil {
		movement = func(*model.TelemetrySample) bool { return false }
	}
	return &Analyzer{
		zones:     zones,
		loc:       opts.Location,
		dedupLoc:  opts.DedupLocationWeight,
		movement:  movement,
		detectors: defaultDetectors,
	}
}

// Analyze scores one sample. The assessment timestamp is the sample's own,
// so identical input always yields an identical assessment.
func (a *Analyzer) Analyze(s model.TelemetrySample) model.RiskAssessment {
	return a.assess(&s, a.Explain(s))
}

// Explain returns the detectors that fired for s, in evaluation order, with
// the weight each actually contributed.
func (a *Analyzer) Explain(s model.TelemetrySample) []Contribution {
	var out []Contribution
	seen := make(map[model.RiskFactor]bool)
	for _, d := range a.detectors {
		if !d.fires(a, &s) {
			continue
		}
		w := d.weight
		if a.dedupLoc && d.factor == model.IsolatedArea && seen[d.factor] {
			w = 0
		}
		seen[d.factor] = true
		out = append(out, Contribution{Detector: d.name, Factor: d.factor, Weight: w})
	}
	return out
}

func (a *Analyzer) assess(s *model.TelemetrySample, fired []Contribution) model.RiskAssessment {
	var (
		points  int
		factors = model.FactorSet{}
	)
	for _, c := range fired {
		points += c.Weight
		factors.Add(c.Factor)
	}

	return model.RiskAssessment{
		Level:      LevelFor(points),
		Confidence: float64(min(points, 100)) / 100,
		Score:      float64(points) / 100,
		Factors:    factors,
		Timestamp:  s.Timestamp,
	}
}

func (a *Analyzer) isNight(s *model.TelemetrySample) bool {
	ts := s.Timestamp
	if a.loc != nil {
		ts = ts.In(a.loc)
	}
	h := ts.Hour()
	return h >= 21 || h <= 6
}

// LevelFor maps a score in hundredths to a risk level.
func LevelFor(points int) model.RiskLevel {
	switch {
	case points >= ThresholdCritical:
		return model.RiskCritical
	case points >= ThresholdHigh:
		return model.RiskHigh
	case points >= ThresholdMedium:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSample is wrapped by every TelemetrySample validation failure.
var ErrInvalidSample = errors.New("invalid telemetry sample")

// MovementState is the movement mode reported by the device.
type MovementState string

const (
	Walking    MovementState = "walking"
	Running    MovementState = "running"
	Driving    MovementState = "driving"
	Cycling    MovementState = "cycling"
	Stationary MovementState = "stationary"
)

// Valid reports whether m is one of the known movement states.
func (m MovementState) Valid() bool {
	switch m {
	case Walking, Running, Driving, Cycling, Stationary:
		return true
	}
	return false
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// TelemetrySample is one point-in-time reading for a tracked journey.
// Speed is in meters per second, BatteryLevel in percent.
type TelemetrySample struct {
	JourneyID     string        `json:"journey_id"`
	Timestamp     time.Time     `json:"timestamp"`
	Location      Location      `json:"location"`
	Speed         float64       `json:"speed"`
	MovementState MovementState `json:"movement_state"`
	BatteryLevel  int           `json:"battery_level"`
	Altitude      *float64      `json:"altitude,omitempty"`
	Accuracy      *float64      `json:"accuracy,omitempty"`
}

// Validate rejects malformed samples before they reach the analyzer.
func (s *TelemetrySample) Validate() error {
	switch {
	case s.JourneyID == "":
		return fmt.Errorf("%w: journey_id is required", ErrInvalidSample)
	case s.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp is required", ErrInvalidSample)
	case s.Location.Lat < -90 || s.Location.Lat > 90:
		return fmt.Errorf("%w: lat %v out of range", ErrInvalidSample, s.Location.Lat)
	case s.Location.Lng < -180 || s.Location.Lng > 180:
		return fmt.Errorf("%w: lng %v out of range", ErrInvalidSample, s.Location.Lng)
	case s.Speed < 0:
		return fmt.Errorf("%w: speed must be >= 0", ErrInvalidSample)
	case s.BatteryLevel < 0 || s.BatteryLevel > 100:
		return fmt.Errorf("%w: battery_level %d out of range", ErrInvalidSample, s.BatteryLevel)
	case !s.MovementState.Valid():
		return fmt.Errorf("%w: unknown movement_state %q", ErrInvalidSample, s.MovementState)
	}
	return nil
}

// RiskFactor is a named risk signal detected for a single sample.
type RiskFactor string

const (
	IsolatedArea   RiskFactor = "isolated_area"
	NightTime      RiskFactor = "night_time"
	RouteDeviation RiskFactor = "route_deviation"
	SpeedAnomaly   RiskFactor = "speed_anomaly"
	LowBattery     RiskFactor = "low_battery"
)

// FactorSet is an insertion-ordered set of risk factors.
type FactorSet []RiskFactor

// Add appends f unless it is already present.
func (s *FactorSet) Add(f RiskFactor) {
	if s.Has(f) {
		return
	}
	*s = append(*s, f)
}

// Has returns true if f is in the set.
func (s FactorSet) Has(f RiskFactor) bool {
	for _, existing := range s {
		if existing == f {
			return true
		}
	}
	return false
}

// Strings returns the factor values in insertion order.
func (s FactorSet) Strings() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = string(f)
	}
	return out
}

// RiskLevel is the ordered severity classification of an assessment.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// LevelRank maps risk levels to comparable integers.
var LevelRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtLeast reports whether l is as severe as other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return LevelRank[l] >= LevelRank[other]
}

// RiskAssessment is the analyzer output for one sample.
type RiskAssessment struct {
	Level      RiskLevel `json:"risk_level"`
	Confidence float64   `json:"confidence"`
	Score      float64   `json:"score"`
	Factors    FactorSet `json:"factors"`
	Timestamp  time.Time `json:"timestamp"`
}

// DecisionAction is the response category chosen for an assessment.
type DecisionAction string

const (
	SilentMonitoring     DecisionAction = "silent_monitoring"
	WarningNotification  DecisionAction = "warning_notification"
	SafeRouteSuggestion  DecisionAction = "safe_route_suggestion"
	AlertEscalation      DecisionAction = "alert_escalation"
	PoliceDashboardEvent DecisionAction = "police_dashboard_event"
)

// DecisionOutput pairs the chosen action with the assessment that produced it.
type DecisionOutput struct {
	Action     DecisionAction `json:"action"`
	Assessment RiskAssessment `json:"risk_assessment"`
	Message    string         `json:"message"`
	RuleID     string         `json:"rule_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// DispatchResult is the only thing the dispatcher returns. A failed
// collaborator call shows up as Executed=false with Error set.
type DispatchResult struct {
	Action    string `json:"action"`
	Executed  bool   `json:"executed"`
	AlertID   string `json:"alert_id,omitempty"`
	Message   string `json:"message"`
	Duplicate bool   `json:"duplicate"`
	Error     string `json:"error,omitempty"`
}

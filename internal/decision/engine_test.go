package decision

import (
	"testing"
	"time"

	"github.com/ppiankov/journeywatch/internal/model"
)

func assessment(level model.RiskLevel, conf float64, factors ...model.RiskFactor) model.RiskAssessment {
	fs := model.FactorSet{}
	for _, f := range factors {
		fs.Add(f)
	}
	return model.RiskAssessment{
		Level:      level,
		Confidence: conf,
		Score:      conf,
		Factors:    fs,
		Timestamp:  time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC),
	}
}

func TestDecideTable(t *testing.T) {
	e := NewEngine()
	tests := []struct {
		name   string
		in     model.RiskAssessment
		action model.DecisionAction
		rule   string
	}{
		{"critical confident", assessment(model.RiskCritical, 0.85), model.AlertEscalation, "critical-confident"},
		{"critical at 0.8", assessment(model.RiskCritical, 0.8), model.WarningNotification, "critical"},
		{"critical low conf", assessment(model.RiskCritical, 0.7), model.WarningNotification, "critical"},
		{"high confident", assessment(model.RiskHigh, 0.75), model.WarningNotification, "high-confident"},
		{"high at 0.7", assessment(model.RiskHigh, 0.7), model.SilentMonitoring, "high"},
		{"high low conf", assessment(model.RiskHigh, 0.5), model.SilentMonitoring, "high"},
		{"medium isolated", assessment(model.RiskMedium, 0.4, model.IsolatedArea), model.SafeRouteSuggestion, "medium-isolated"},
		{"medium isolated night", assessment(model.RiskMedium, 0.4, model.NightTime, model.IsolatedArea), model.SafeRouteSuggestion, "medium-isolated"},
		{"medium night", assessment(model.RiskMedium, 0.3, model.NightTime), model.WarningNotification, "medium-night"},
		{"medium other", assessment(model.RiskMedium, 0.35, model.SpeedAnomaly, model.LowBattery), model.SilentMonitoring, "medium"},
		{"low", assessment(model.RiskLow, 0.2, model.IsolatedArea), model.SilentMonitoring, "low"},
		{"low empty", assessment(model.RiskLow, 0), model.SilentMonitoring, "low"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Decide(tt.in)
			if got.Action != tt.action {
				t.Errorf("action = %s, want %s", got.Action, tt.action)
			}
			if got.RuleID != tt.rule {
				t.Errorf("rule = %s, want %s", got.RuleID, tt.rule)
			}
		})
	}
}

func TestMediumIsolatedIgnoresConfidence(t *testing.T) {
	e := NewEngine()
	for _, conf := range []float64{0, 0.3, 0.49, 0.9, 1} {
		got := e.Decide(assessment(model.RiskMedium, conf, model.IsolatedArea))
		if got.Action != model.SafeRouteSuggestion {
			t.Errorf("confidence %v: action = %s", conf, got.Action)
		}
	}
}

func TestDecideNeverProducesPoliceEvent(t *testing.T) {
	e := NewEngine()
	levels := []model.RiskLevel{model.RiskLow, model.RiskMedium, model.RiskHigh, model.RiskCritical}
	all := []model.RiskFactor{model.IsolatedArea, model.NightTime, model.RouteDeviation, model.SpeedAnomaly, model.LowBattery}
	for _, lvl := range levels {
		for c := 0; c <= 10; c++ {
			for mask := 0; mask < 1<<len(all); mask++ {
				var fs []model.RiskFactor
				for i, f := range all {
					if mask&(1<<i) != 0 {
						fs = append(fs, f)
					}
				}
				got := e.Decide(assessment(lvl, float64(c)/10, fs...))
				if got.Action == model.PoliceDashboardEvent {
					t.Fatalf("police event produced for %s/%v/%v", lvl, c, fs)
				}
			}
		}
	}
}

func TestDecideCarriesAssessment(t *testing.T) {
	in := assessment(model.RiskCritical, 0.85, model.NightTime, model.LowBattery)
	got := NewEngine().Decide(in)

	if got.Assessment.Level != in.Level || got.Assessment.Confidence != in.Confidence {
		t.Errorf("assessment not carried: %+v", got.Assessment)
	}
	if !got.Timestamp.Equal(in.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, in.Timestamp)
	}
}

func TestMessages(t *testing.T) {
	a := assessment(model.RiskCritical, 0.85, model.NightTime, model.SpeedAnomaly)
	tests := []struct {
		action model.DecisionAction
		want   string
	}{
		{model.AlertEscalation, "Critical risk detected (CRITICAL) with factors: night_time, speed_anomaly. Immediate assistance requested."},
		{model.WarningNotification, "Elevated risk (CRITICAL) detected with factors: night_time, speed_anomaly. User notified."},
		{model.SafeRouteSuggestion, "Medium risk (CRITICAL) detected in isolated area. Safe route suggested to user."},
		{model.PoliceDashboardEvent, "Safety event reported for user journey. Risk level: CRITICAL. Factors: night_time, speed_anomaly."},
		{model.SilentMonitoring, "Normal monitoring continuing. Current risk level: CRITICAL."},
	}
	for _, tt := range tests {
		if got := Message(a, tt.action); got != tt.want {
			t.Errorf("%s:\n got  %q\n want %q", tt.action, got, tt.want)
		}
	}
}

func TestMessageNoFactors(t *testing.T) {
	got := Message(assessment(model.RiskHigh, 0.75), model.WarningNotification)
	want := "Elevated risk (HIGH) detected with factors: none. User notified."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestComposeExternalAction(t *testing.T) {
	a := assessment(model.RiskHigh, 0.6, model.IsolatedArea)
	got := Compose(a, model.PoliceDashboardEvent)

	if got.Action != model.PoliceDashboardEvent {
		t.Errorf("action = %s", got.Action)
	}
	if got.RuleID != "" {
		t.Errorf("composed output should carry no rule, got %q", got.RuleID)
	}
	if got.Message != "Safety event reported for user journey. Risk level: HIGH. Factors: isolated_area." {
		t.Errorf("message = %q", got.Message)
	}
}

func TestCustomRules(t *testing.T) {
	e := NewEngine(Rule{ID: "page-everything", Level: model.RiskLow, When: always, Action: model.PoliceDashboardEvent})

	if got := e.Decide(assessment(model.RiskLow, 0)); got.Action != model.PoliceDashboardEvent {
		t.Errorf("custom rule not applied: %s", got.Action)
	}
	if got := e.Decide(assessment(model.RiskCritical, 1)); got.Action != model.SilentMonitoring || got.RuleID != "" {
		t.Errorf("unmatched assessment should fall back to silent monitoring, got %s/%s", got.Action, got.RuleID)
	}
}

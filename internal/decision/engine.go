// Package decision maps a risk assessment to exactly one response action.
package decision

import (
	"fmt"
	"strings"

	"github.com/ppiankov/journeywatch/internal/model"
)

// Rule is one row of the decision table. Rules for a level are tried in
// order; the first whose predicate holds wins.
type Rule struct {
	ID     string
	Level  model.RiskLevel
	When   func(a *model.RiskAssessment) bool
	Action model.DecisionAction
}

func always(*model.RiskAssessment) bool { return true }

func confidenceAbove(v float64) func(*model.RiskAssessment) bool {
	return func(a *model.RiskAssessment) bool { return a.Confidence > v }
}

func hasFactor(f model.RiskFactor) func(*model.RiskAssessment) bool {
	return func(a *model.RiskAssessment) bool { return a.Factors.Has(f) }
}

// DefaultRules is the built-in decision table.
var DefaultRules = []Rule{
	{"critical-confident", model.RiskCritical, confidenceAbove(0.8), model.AlertEscalation},
	{"critical", model.RiskCritical, always, model.WarningNotification},
	{"high-confident", model.RiskHigh, confidenceAbove(0.7), model.WarningNotification},
	{"high", model.RiskHigh, always, model.SilentMonitoring},
	{"medium-isolated", model.RiskMedium, hasFactor(model.IsolatedArea), model.SafeRouteSuggestion},
	{"medium-night", model.RiskMedium, hasFactor(model.NightTime), model.WarningNotification},
	{"medium", model.RiskMedium, always, model.SilentMonitoring},
	{"low", model.RiskLow, always, model.SilentMonitoring},
}

// Engine evaluates the decision table. It holds no mutable state.
type Engine struct {
	rules []Rule
}

// NewEngine returns an engine over rules, or DefaultRules when rules is empty.
func NewEngine(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Engine{rules: rules}
}

// Decide picks the action for a. An assessment matching no rule falls back
// to silent monitoring.
func (e *Engine) Decide(a model.RiskAssessment) model.DecisionOutput {
	for _, r := range e.rules {
		if r.Level == a.Level && r.When(&a) {
			out := Compose(a, r.Action)
			out.RuleID = r.ID
			return out
		}
	}
	return Compose(a, model.SilentMonitoring)
}

var templates = map[model.DecisionAction]string{
	model.AlertEscalation:      "Critical risk detected (%[1]s) with factors: %[2]s. Immediate assistance requested.",
	model.WarningNotification:  "Elevated risk (%[1]s) detected with factors: %[2]s. User notified.",
	model.SafeRouteSuggestion:  "Medium risk (%[1]s) detected in isolated area. Safe route suggested to user.",
	model.PoliceDashboardEvent: "Safety event reported for user journey. Risk level: %[1]s. Factors: %[2]s.",
	model.SilentMonitoring:     "Normal monitoring continuing. Current risk level: %[1]s.",
}

// Compose builds the DecisionOutput for an action chosen outside the table.
// The table never selects POLICE_DASHBOARD_EVENT; it is reserved for an
// external trigger path, which none of the built-in transports provide.
func Compose(a model.RiskAssessment, action model.DecisionAction) model.DecisionOutput {
	return model.DecisionOutput{
		Action:     action,
		Assessment: a,
		Message:    Message(a, action),
		Timestamp:  a.Timestamp,
	}
}

// Message renders the explanation for action. Unknown actions get a generic line.
func Message(a model.RiskAssessment, action model.DecisionAction) string {
	tmpl, ok := templates[action]
	if !ok {
		return fmt.Sprintf("Action %s taken at risk level %s.", action, a.Level)
	}
	return fmt.Sprintf(tmpl, a.Level, factorList(a.Factors))
}

func factorList(fs model.FactorSet) string {
	if len(fs) == 0 {
		return "none"
	}
	return strings.Join(fs.Strings(), ", ")
}

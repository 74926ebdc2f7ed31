// Package dispatch executes a decision: deduplicated alert creation for
// alert-producing actions, an audit record for everything else.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/ppiankov/journeywatch/internal/metrics"
	"github.com/ppiankov/journeywatch/internal/model"
)

// DedupWindow is how long an unresolved alert suppresses new ones for the
// same journey and user.
const DedupWindow = 5 * time.Minute

// AlertStore persists alerts.
type AlertStore interface {
	// FindRecentUnresolved returns the newest non-resolved alert for the
	// journey and user created at or after since, or nil if there is none.
	FindRecentUnresolved(ctx context.Context, journeyID, userID string, since time.Time) (*model.Alert, error)
	Insert(ctx context.Context, a model.Alert) (model.Alert, error)
}

// AuditSink records audit events. A returned error is surfaced in the
// DispatchResult, never dropped.
type AuditSink interface {
	Append(ctx context.Context, e model.AuditEvent) error
}

// Notifier is told about alerts after they are stored. Only new alerts are
// reported; failures are the notifier's to handle.
type Notifier interface {
	AlertCreated(ctx context.Context, a model.Alert, d model.DecisionOutput)
}

// Target identifies who and where the decision applies to.
type Target struct {
	UserID    string
	JourneyID string
	Location  model.Location
	Meta      model.RequestMeta
}

type plan struct {
	createsAlert bool
	priority     func(level model.RiskLevel) model.AlertPriority
}

func fixed(p model.AlertPriority) func(model.RiskLevel) model.AlertPriority {
	return func(model.RiskLevel) model.AlertPriority { return p }
}

// plans is keyed by every DecisionAction. Audit-only actions carry no priority.
var plans = map[model.DecisionAction]plan{
	model.AlertEscalation: {true, func(l model.RiskLevel) model.AlertPriority {
		if l == model.RiskCritical {
			return model.PriorityCritical
		}
		return model.PriorityHigh
	}},
	model.PoliceDashboardEvent: {true, func(l model.RiskLevel) model.AlertPriority {
		if l.AtLeast(model.RiskHigh) {
			return model.PriorityHigh
		}
		return model.PriorityMedium
	}},
	model.WarningNotification: {true, fixed(model.PriorityMedium)},
	model.SafeRouteSuggestion: {false, nil},
	model.SilentMonitoring:    {false, nil},
}

// PriorityFor returns the alert priority the action would be stored with,
// and false for audit-only actions.
func PriorityFor(action model.DecisionAction, level model.RiskLevel) (model.AlertPriority, bool) {
	p, ok := plans[action]
	if !ok || !p.createsAlert {
		return "", false
	}
	return p.priority(level), true
}

// Dispatcher executes decisions against an alert store and audit sink.
// Lookups and writes are issued sequentially; deduplication is best-effort
// across concurrent callers unless the store enforces it.
type Dispatcher struct {
	store    AlertStore
	audit    AuditSink
	notifier Notifier
	clock    clockz.Clock
	logger   *zap.Logger
	metrics  *metrics.Collector
	newID    func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithClock(c clockz.Clock) Option         { return func(d *Dispatcher) { d.clock = c } }
func WithLogger(l *zap.Logger) Option         { return func(d *Dispatcher) { d.logger = l } }
func WithNotifier(n Notifier) Option          { return func(d *Dispatcher) { d.notifier = n } }
func WithMetrics(m *metrics.Collector) Option { return func(d *Dispatcher) { d.metrics = m } }

// WithIDGenerator overrides the alert ID source (default: random UUIDs).
func WithIDGenerator(f func() string) Option { return func(d *Dispatcher) { d.newID = f } }

// New creates a Dispatcher.
func New(store AlertStore, audit AuditSink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		audit:  audit,
		clock:  clockz.RealClock,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// Dispatch executes decision for target. It never returns an error:
// collaborator failures yield Executed=false with Error set. An action
// outside the DecisionAction set panics.
func (d *Dispatcher) Dispatch(ctx context.Context, decision model.DecisionOutput, target Target) model.DispatchResult {
	if _, ok := plans[decision.Action]; !ok {
		panic(fmt.Sprintf("dispatch: unknown decision action %q", decision.Action))
	}

	res := model.DispatchResult{
		Action:  string(decision.Action),
		Message: decision.Message,
	}

	var err error
	if priority, ok := PriorityFor(decision.Action, decision.Assessment.Level); ok {
		err = d.createAlert(ctx, decision, target, priority, &res)
	} else {
		err = d.recordDecision(ctx, decision, target)
	}

	if err != nil {
		res.Executed = false
		res.Error = err.Error()
		d.metrics.Dispatched(res.Action, metrics.OutcomeFailed)
		d.logger.Warn("dispatch failed",
			zap.String("action", res.Action),
			zap.String("journey_id", target.JourneyID),
			zap.Error(err))
		return res
	}

	res.Executed = true
	outcome := metrics.OutcomeExecuted
	if res.Duplicate {
		outcome = metrics.OutcomeDuplicate
	}
	d.metrics.Dispatched(res.Action, outcome)
	return res
}

func (d *Dispatcher) createAlert(ctx context.Context, decision model.DecisionOutput, t Target, priority model.AlertPriority, res *model.DispatchResult) error {
	now := d.clock.Now()

	existing, err := d.store.FindRecentUnresolved(ctx, t.JourneyID, t.UserID, now.Add(-DedupWindow))
	if err != nil {
		return fmt.Errorf("dispatch: find recent alert: %w", err)
	}
	if existing != nil {
		res.AlertID = existing.ID
		res.Duplicate = true
		d.logger.Debug("duplicate alert suppressed",
			zap.String("alert_id", existing.ID),
			zap.String("journey_id", t.JourneyID))
		return nil
	}

	alert, err := d.store.Insert(ctx, model.Alert{
		ID:        d.newID(),
		JourneyID: t.JourneyID,
		UserID:    t.UserID,
		Type:      model.AlertAutomated,
		Message:   decision.Message,
		Location:  t.Location,
		Priority:  priority,
		Status:    model.AlertActive,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("dispatch: insert alert: %w", err)
	}
	res.AlertID = alert.ID

	err = d.audit.Append(ctx, model.AuditEvent{
		UserID:       t.UserID,
		Action:       model.AuditAlertCreated,
		ResourceID:   alert.ID,
		ResourceType: model.ResourceAlert,
		Details: &model.AuditDetails{
			AlertType: string(alert.Type),
			Priority:  string(alert.Priority),
			Message:   alert.Message,
			JourneyID: alert.JourneyID,
		},
		IPAddress: t.Meta.IPAddress,
		UserAgent: t.Meta.UserAgent,
		Timestamp: now,
	})
	if err != nil {
		return fmt.Errorf("dispatch: audit alert %s: %w", alert.ID, err)
	}

	d.metrics.AlertCreated(string(alert.Priority))
	d.logger.Info("alert created",
		zap.String("alert_id", alert.ID),
		zap.String("journey_id", t.JourneyID),
		zap.String("priority", string(alert.Priority)))

	if d.notifier != nil {
		d.notifier.AlertCreated(ctx, alert, decision)
	}
	return nil
}

func (d *Dispatcher) recordDecision(ctx context.Context, decision model.DecisionOutput, t Target) error {
	conf := decision.Assessment.Confidence
	err := d.audit.Append(ctx, model.AuditEvent{
		UserID:       t.UserID,
		Action:       model.AuditDecisionMade,
		ResourceID:   t.JourneyID,
		ResourceType: model.ResourceJourney,
		Details: &model.AuditDetails{
			DecisionAction: string(decision.Action),
			RiskLevel:      string(decision.Assessment.Level),
			Confidence:     &conf,
		},
		IPAddress: t.Meta.IPAddress,
		UserAgent: t.Meta.UserAgent,
		Timestamp: d.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("dispatch: audit decision: %w", err)
	}
	return nil
}

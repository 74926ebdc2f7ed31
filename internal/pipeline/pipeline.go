// Package pipeline wires the analyzer, decision engine and dispatcher into
// the single entry point transports call for each telemetry sample.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/ppiankov/journeywatch/internal/decision"
	"github.com/ppiankov/journeywatch/internal/dispatch"
	"github.com/ppiankov/journeywatch/internal/metrics"
	"github.com/ppiankov/journeywatch/internal/model"
	"github.com/ppiankov/journeywatch/internal/risk"
)

// ErrNoCaller is returned when a sample arrives without a resolved user.
var ErrNoCaller = errors.New("pipeline: caller user id is required")

// Caller is the already-authenticated identity a sample is processed for.
type Caller struct {
	UserID string
	Meta   model.RequestMeta
}

// Outcome is everything one sample produced. Result is nil on the
// analyze-only path.
type Outcome struct {
	Assessment model.RiskAssessment  `json:"risk_assessment"`
	Decision   model.DecisionOutput  `json:"decision"`
	Result     *model.DispatchResult `json:"action_result,omitempty"`
}

// Pipeline is safe for concurrent use as long as its collaborators are.
type Pipeline struct {
	analyzer   *risk.Analyzer
	engine     *decision.Engine
	dispatcher *dispatch.Dispatcher
	audit      dispatch.AuditSink
	clock      clockz.Clock
	logger     *zap.Logger
	metrics    *metrics.Collector
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithClock(c clockz.Clock) Option         { return func(p *Pipeline) { p.clock = c } }
func WithLogger(l *zap.Logger) Option         { return func(p *Pipeline) { p.logger = l } }
func WithMetrics(m *metrics.Collector) Option { return func(p *Pipeline) { p.metrics = m } }

// New assembles a pipeline. The audit sink receives journey-level events;
// the dispatcher keeps its own sink for alert and decision events. Both may
// be nil when the pipeline only serves unrecorded Assess calls.
func New(analyzer *risk.Analyzer, engine *decision.Engine, dispatcher *dispatch.Dispatcher, audit dispatch.AuditSink, opts ...Option) *Pipeline {
	p := &Pipeline{
		analyzer:   analyzer,
		engine:     engine,
		dispatcher: dispatcher,
		audit:      audit,
		clock:      clockz.RealClock,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Process runs one sample end to end: assess, decide, dispatch, then record
// journey_update and risk_assessment audit events. Only invalid input is
// an error; dispatch and audit failures are reported in the outcome or logged.
func (p *Pipeline) Process(ctx context.Context, c Caller, s model.TelemetrySample) (Outcome, error) {
	if err := check(c, &s); err != nil {
		return Outcome{}, err
	}
	start := time.Now()
	defer p.metrics.ObserveSince("process", start)

	assessment := p.analyze(s)
	dec := p.engine.Decide(assessment)
	res := p.dispatcher.Dispatch(ctx, dec, dispatch.Target{
		UserID:    c.UserID,
		JourneyID: s.JourneyID,
		Location:  s.Location,
		Meta:      c.Meta,
	})

	speed := s.Speed
	loc := s.Location
	p.record(ctx, c, s.JourneyID, model.AuditJourneyUpdate, &model.AuditDetails{
		Location:      &loc,
		Speed:         &speed,
		MovementState: s.MovementState,
	})
	p.recordAssessment(ctx, c, s.JourneyID, assessment)

	p.logger.Debug("sample processed",
		zap.String("journey_id", s.JourneyID),
		zap.String("risk_level", string(assessment.Level)),
		zap.String("action", string(dec.Action)),
		zap.Bool("executed", res.Executed),
		zap.Bool("duplicate", res.Duplicate))

	return Outcome{Assessment: assessment, Decision: dec, Result: &res}, nil
}

// Assess classifies a sample and reports the decision that Process would
// take, without dispatching. With record set it appends a risk_assessment
// audit event.
func (p *Pipeline) Assess(ctx context.Context, c Caller, s model.TelemetrySample, record bool) (Outcome, error) {
	if record {
		if err := check(c, &s); err != nil {
			return Outcome{}, err
		}
	} else if err := s.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("pipeline: %w", err)
	}
	start := time.Now()
	defer p.metrics.ObserveSince("assess", start)

	assessment := p.analyze(s)
	if record {
		p.recordAssessment(ctx, c, s.JourneyID, assessment)
	}
	return Outcome{Assessment: assessment, Decision: p.engine.Decide(assessment)}, nil
}

// Explain lists the detectors that fire for a valid sample.
func (p *Pipeline) Explain(s model.TelemetrySample) ([]risk.Contribution, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return p.analyzer.Explain(s), nil
}

func (p *Pipeline) analyze(s model.TelemetrySample) model.RiskAssessment {
	a := p.analyzer.Analyze(s)
	p.metrics.Assessed(string(a.Level))
	return a
}

func (p *Pipeline) recordAssessment(ctx context.Context, c Caller, journeyID string, a model.RiskAssessment) {
	conf := a.Confidence
	p.record(ctx, c, journeyID, model.AuditRiskAssessment, &model.AuditDetails{
		RiskLevel:  string(a.Level),
		Factors:    a.Factors.Strings(),
		Confidence: &conf,
	})
}

func (p *Pipeline) record(ctx context.Context, c Caller, journeyID string, action model.AuditAction, details *model.AuditDetails) {
	err := p.audit.Append(ctx, model.AuditEvent{
		UserID:       c.UserID,
		Action:       action,
		ResourceID:   journeyID,
		ResourceType: model.ResourceJourney,
		Details:      details,
		IPAddress:    c.Meta.IPAddress,
		UserAgent:    c.Meta.UserAgent,
		Timestamp:    p.clock.Now(),
	})
	if err != nil {
		p.metrics.AuditFailed()
		p.logger.Warn("audit write failed",
			zap.String("action", string(action)),
			zap.String("journey_id", journeyID),
			zap.Error(err))
	}
}

func check(c Caller, s *model.TelemetrySample) error {
	if c.UserID == "" {
		return ErrNoCaller
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// Package httpapi is the HTTP transport: telemetry ingestion, analyze-only
// risk checks, alert listing and resolution, health and metrics.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/ppiankov/journeywatch/internal/dispatch"
	"github.com/ppiankov/journeywatch/internal/metrics"
	"github.com/ppiankov/journeywatch/internal/model"
	"github.com/ppiankov/journeywatch/internal/pipeline"
	"github.com/ppiankov/journeywatch/internal/store"
)

// UserHeader carries the identity resolved by the upstream authenticator.
const UserHeader = "X-User-ID"

// RequestTimeout bounds every request.
const RequestTimeout = 15 * time.Second

// Deps are the collaborators the router serves.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Alerts   store.Store
	Audit    dispatch.AuditSink
	Metrics  *metrics.Collector
	Logger   *zap.Logger
	Clock    clockz.Clock
}

type api struct {
	Deps
}

// NewRouter builds the chi router.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clockz.RealClock
	}
	a := &api{Deps: deps}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(deps.Logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(RequestTimeout))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "journeywatch"})
	})
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/telemetry", a.telemetry)
		r.Post("/analyze-risk", a.analyzeRisk)
		r.Get("/alerts", a.listAlerts)
		r.Get("/alerts/{id}", a.getAlert)
		r.Post("/alerts/{id}/resolve", a.resolveAlert)
	})
	return router
}

type callerKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		c := pipeline.Caller{
			UserID: user,
			Meta: model.RequestMeta{
				IPAddress: clientIP(r.RemoteAddr),
				UserAgent: r.UserAgent(),
			},
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, c)))
	})
}

func callerFrom(r *http.Request) pipeline.Caller {
	c, _ := r.Context().Value(callerKey{}).(pipeline.Caller)
	return c
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

type decisionView struct {
	Action    model.DecisionAction `json:"action"`
	Message   string               `json:"message"`
	Timestamp time.Time            `json:"timestamp"`
}

func viewOf(d model.DecisionOutput) decisionView {
	return decisionView{Action: d.Action, Message: d.Message, Timestamp: d.Timestamp}
}

type telemetryResponse struct {
	RiskAssessment model.RiskAssessment  `json:"risk_assessment"`
	Decision       decisionView          `json:"decision"`
	ActionResult   *model.DispatchResult `json:"action_result"`
}

func (a *api) telemetry(w http.ResponseWriter, r *http.Request) {
	var sample model.TelemetrySample
	if err := decodeJSON(r, &sample); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := a.Pipeline.Process(r.Context(), callerFrom(r), sample)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, telemetryResponse{
		RiskAssessment: out.Assessment,
		Decision:       viewOf(out.Decision),
		ActionResult:   out.Result,
	})
}

type analyzeRequest struct {
	JourneyID string                `json:"journey_id"`
	Telemetry model.TelemetrySample `json:"telemetry"`
}

type analyzeResponse struct {
	RiskAssessment model.RiskAssessment `json:"risk_assessment"`
	Decision       decisionView         `json:"decision"`
}

func (a *api) analyzeRisk(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Telemetry.JourneyID == "" {
		req.Telemetry.JourneyID = req.JourneyID
	}
	if req.JourneyID != "" && req.Telemetry.JourneyID != req.JourneyID {
		writeError(w, http.StatusBadRequest, "journey_id does not match telemetry.journey_id")
		return
	}

	out, err := a.Pipeline.Assess(r.Context(), callerFrom(r), req.Telemetry, true)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, analyzeResponse{
		RiskAssessment: out.Assessment,
		Decision:       viewOf(out.Decision),
	})
}

func (a *api) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{
		UserID:     callerFrom(r).UserID,
		JourneyID:  q.Get("journey_id"),
		ActiveOnly: q.Get("active") == "true",
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	alerts, err := a.Alerts.List(r.Context(), f)
	if err != nil {
		a.Logger.Error("list alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeData(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// ownedAlert loads the alert named in the URL, answering 404 for alerts
// that belong to another user.
func (a *api) ownedAlert(w http.ResponseWriter, r *http.Request) (model.Alert, bool) {
	alert, err := a.Alerts.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "alert not found")
		return model.Alert{}, false
	case err != nil:
		a.Logger.Error("get alert", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load alert")
		return model.Alert{}, false
	case alert.UserID != callerFrom(r).UserID:
		writeError(w, http.StatusNotFound, "alert not found")
		return model.Alert{}, false
	}
	return alert, true
}

func (a *api) getAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := a.ownedAlert(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, alert)
}

func (a *api) resolveAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := a.ownedAlert(w, r)
	if !ok {
		return
	}
	if alert.Status == model.AlertResolved {
		writeData(w, http.StatusOK, alert)
		return
	}

	now := a.Clock.Now()
	if err := a.Alerts.SetStatus(r.Context(), alert.ID, model.AlertResolved, now); err != nil {
		a.Logger.Error("resolve alert", zap.String("alert_id", alert.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve alert")
		return
	}

	c := callerFrom(r)
	if a.Audit != nil {
		err := a.Audit.Append(r.Context(), model.AuditEvent{
			UserID:       c.UserID,
			Action:       model.AuditAlertResolved,
			ResourceID:   alert.ID,
			ResourceType: model.ResourceAlert,
			Details:      &model.AuditDetails{JourneyID: alert.JourneyID, Priority: string(alert.Priority)},
			IPAddress:    c.Meta.IPAddress,
			UserAgent:    c.Meta.UserAgent,
			Timestamp:    now,
		})
		if err != nil {
			a.Metrics.AuditFailed()
			a.Logger.Warn("audit write failed", zap.String("alert_id", alert.ID), zap.Error(err))
		}
	}

	alert, err := a.Alerts.Get(r.Context(), alert.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload alert")
		return
	}
	writeData(w, http.StatusOK, alert)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrNoCaller):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrInvalidSample):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

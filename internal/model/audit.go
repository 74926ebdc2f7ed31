package model

import "time"

// AuditAction is the closed set of audited events.
type AuditAction string

const (
	AuditUserLogin      AuditAction = "user_login"
	AuditUserRegister   AuditAction = "user_register"
	AuditJourneyStart   AuditAction = "journey_start"
	AuditJourneyUpdate  AuditAction = "journey_update"
	AuditJourneyEnd     AuditAction = "journey_end"
	AuditRiskAssessment AuditAction = "risk_assessment"
	AuditAlertCreated   AuditAction = "alert_created"
	AuditAlertResolved  AuditAction = "alert_resolved"
	AuditAlertEscalated AuditAction = "alert_escalated"
	AuditDecisionMade   AuditAction = "decision_made"
	AuditSOSTriggered   AuditAction = "sos_triggered"
)

// Resource types referenced by audit events.
const (
	ResourceJourney = "journey"
	ResourceAlert   = "alert"
)

// AuditDetails carries the action-specific payload of an audit event.
// A struct rather than a map so that serialization order is stable.
type AuditDetails struct {
	DecisionAction string        `json:"decision_action,omitempty"`
	RiskLevel      string        `json:"risk_level,omitempty"`
	Confidence     *float64      `json:"confidence,omitempty"`
	Factors        []string      `json:"factors,omitempty"`
	AlertType      string        `json:"alert_type,omitempty"`
	Priority       string        `json:"priority,omitempty"`
	Message        string        `json:"message,omitempty"`
	Location       *Location     `json:"location,omitempty"`
	Speed          *float64      `json:"speed,omitempty"`
	MovementState  MovementState `json:"movement_state,omitempty"`
	JourneyID      string        `json:"journey_id,omitempty"`
}

// AuditEvent is one record handed to an audit sink.
type AuditEvent struct {
	UserID       string        `json:"user_id"`
	Action       AuditAction   `json:"action"`
	ResourceID   string        `json:"resource_id,omitempty"`
	ResourceType string        `json:"resource_type,omitempty"`
	Details      *AuditDetails `json:"details,omitempty"`
	IPAddress    string        `json:"ip_address,omitempty"`
	UserAgent    string        `json:"user_agent,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// RequestMeta is the caller's transport metadata, recorded on audit events.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

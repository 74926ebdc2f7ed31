package model

import "time"

// AlertType distinguishes who raised an alert.
type AlertType string

const (
	AlertSOS       AlertType = "sos"
	AlertAutomated AlertType = "automated_alert"
	AlertManual    AlertType = "manual_alert"
)

// AlertPriority orders alerts on the operator dashboard.
type AlertPriority string

const (
	PriorityLow      AlertPriority = "low"
	PriorityMedium   AlertPriority = "medium"
	PriorityHigh     AlertPriority = "high"
	PriorityCritical AlertPriority = "critical"
)

// AlertStatus is the operator-facing lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertResolved  AlertStatus = "resolved"
	AlertEscalated AlertStatus = "escalated"
)

// Alert is a persisted safety alert. The pipeline only ever creates
// alerts; resolution and escalation happen elsewhere.
type Alert struct {
	ID          string        `json:"id"`
	JourneyID   string        `json:"journey_id"`
	UserID      string        `json:"user_id"`
	Type        AlertType     `json:"alert_type"`
	Message     string        `json:"message"`
	Location    Location      `json:"location"`
	Priority    AlertPriority `json:"priority"`
	Status      AlertStatus   `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
	EscalatedAt *time.Time    `json:"escalated_at,omitempty"`
	AssignedTo  string        `json:"assigned_to,omitempty"`
}

// Unresolved reports whether the alert still counts for deduplication.
func (a *Alert) Unresolved() bool {
	return a.Status != AlertResolved
}

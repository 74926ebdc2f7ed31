package notify

import (
	"github.com/ppiankov/journeywatch/internal/model"
)

// AlertEvent is the payload sent to webhooks and Kafka.
type AlertEvent struct {
	Timestamp  string         `json:"timestamp"`
	AlertID    string         `json:"alert_id"`
	JourneyID  string         `json:"journey_id"`
	UserID     string         `json:"user_id"`
	Priority   string         `json:"priority"`
	Action     string         `json:"action"`
	RiskLevel  string         `json:"risk_level"`
	Confidence float64        `json:"confidence"`
	Factors    []string       `json:"factors"`
	Message    string         `json:"message"`
	Location   model.Location `json:"location"`
}

const timestampFormat = "2006-01-02T15:04:05.000Z"

// NewEvent builds the notification payload for a stored alert.
func NewEvent(a model.Alert, d model.DecisionOutput) AlertEvent {
	return AlertEvent{
		Timestamp:  a.CreatedAt.UTC().Format(timestampFormat),
		AlertID:    a.ID,
		JourneyID:  a.JourneyID,
		UserID:     a.UserID,
		Priority:   string(a.Priority),
		Action:     string(d.Action),
		RiskLevel:  string(d.Assessment.Level),
		Confidence: d.Assessment.Confidence,
		Factors:    d.Assessment.Factors.Strings(),
		Message:    a.Message,
		Location:   a.Location,
	}
}

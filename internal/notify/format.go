package notify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event AlertEvent) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return json.Marshal(event)
	}
}

func factorText(f []string) string {
	if len(f) == 0 {
		return "none"
	}
	return strings.Join(f, ", ")
}

func formatSlack(event AlertEvent) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("journeywatch: %s alert", strings.ToUpper(event.Priority)),
				},
			},
			map[string]any{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": event.Message},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Journey:* %s", event.JourneyID)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Risk:* %s (%.2f)", event.RiskLevel, event.Confidence)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Factors:* %s", factorText(event.Factors))},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Location:* %.5f, %.5f", event.Location.Lat, event.Location.Lng)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

// PagerDuty severities are critical, error, warning and info.
var pagerDutySeverity = map[string]string{
	"critical": "critical",
	"high":     "error",
	"medium":   "warning",
	"low":      "info",
}

func formatPagerDuty(event AlertEvent) ([]byte, error) {
	severity, ok := pagerDutySeverity[event.Priority]
	if !ok {
		severity = "info"
	}

	payload := map[string]any{
		"event_action": "trigger",
		"dedup_key":    event.AlertID,
		"payload": map[string]any{
			"summary":  fmt.Sprintf("journeywatch %s: journey %s", event.RiskLevel, event.JourneyID),
			"severity": severity,
			"source":   "journeywatch",
			"custom_details": map[string]any{
				"alert_id":   event.AlertID,
				"user_id":    event.UserID,
				"action":     event.Action,
				"confidence": event.Confidence,
				"factors":    event.Factors,
				"message":    event.Message,
				"lat":        event.Location.Lat,
				"lng":        event.Location.Lng,
			},
		},
	}
	return json.Marshal(payload)
}

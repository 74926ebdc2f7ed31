package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	label := result.JourneyID
	if label == "" {
		label = "all journeys"
	}
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Journey: %s | No entries found.\n", label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Journey: %s | %s–%s UTC\n", label,
		formatDateTime(result.Summary.FirstTimestamp), formatTimeOnly(result.Summary.LastTimestamp))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		fmt.Fprintf(&b, "%-10s %-16s %-9s %s\n",
			formatTimeOnly(e.Timestamp), e.Action, severity(&e), truncate(describe(&e), 48))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))
	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func severity(e *AuditEntry) string {
	if e.Details == nil {
		return "-"
	}
	if e.Details.RiskLevel != "" {
		return e.Details.RiskLevel
	}
	if e.Details.Priority != "" {
		return strings.ToUpper(e.Details.Priority)
	}
	return "-"
}

func describe(e *AuditEntry) string {
	d := e.Details
	if d == nil {
		return e.ResourceID
	}
	switch {
	case d.DecisionAction != "":
		return d.DecisionAction
	case d.Message != "":
		return d.Message
	case len(d.Factors) > 0:
		return strings.Join(d.Factors, ",")
	case d.Location != nil:
		return fmt.Sprintf("%.5f,%.5f %s", d.Location.Lat, d.Location.Lng, d.MovementState)
	}
	return e.ResourceID
}

func formatDateTime(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	actions := make([]string, 0, len(s.Actions))
	for a := range s.Actions {
		actions = append(actions, a)
	}
	sort.Strings(actions)

	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, fmt.Sprintf("%d %s", s.Actions[a], a))
	}

	maxLevel := s.MaxRiskLevel
	if maxLevel == "" {
		maxLevel = "n/a"
	}
	return fmt.Sprintf("Summary: %s | Alerts: %d | Max risk: %s\n",
		strings.Join(parts, ", "), s.AlertsCreated, maxLevel)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

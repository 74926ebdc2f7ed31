package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/journeywatch/internal/model"
)

// ReplayFilter selects entries for a journey timeline. Empty fields match all.
type ReplayFilter struct {
	JourneyID string
	UserID    string
	From      time.Time // zero value = no lower bound
	To        time.Time // zero value = no upper bound
}

// ReplaySummary counts what happened over the replayed entries.
type ReplaySummary struct {
	Total          int            `json:"total"`
	Actions        map[string]int `json:"actions"`
	AlertsCreated  int            `json:"alerts_created"`
	MaxRiskLevel   string         `json:"max_risk_level,omitempty"`
	FirstTimestamp string         `json:"first_timestamp"`
	LastTimestamp  string         `json:"last_timestamp"`
}

// ReplayResult holds filtered entries and their summary.
type ReplayResult struct {
	JourneyID string        `json:"journey_id,omitempty"`
	Entries   []AuditEntry  `json:"entries"`
	Summary   ReplaySummary `json:"summary"`
}

// Replay reads the audit log and returns entries matching the filter in
// log order. Malformed lines are skipped; use Verify to detect them.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{
		JourneyID: filter.JourneyID,
		Summary:   ReplaySummary{Actions: make(map[string]int)},
	}

	scanner := newScanner(f)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if !filter.match(&entry) {
			continue
		}
		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return result, nil
}

func (f ReplayFilter) match(e *AuditEntry) bool {
	if f.JourneyID != "" && e.JourneyID() != f.JourneyID {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		ts, err := time.Parse(TimestampFormat, e.Timestamp)
		if err != nil {
			return false
		}
		if !f.From.IsZero() && ts.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && ts.After(f.To) {
			return false
		}
	}
	return true
}

func updateSummary(s *ReplaySummary, e AuditEntry) {
	s.Total++
	s.Actions[e.Action]++

	if e.Action == string(model.AuditAlertCreated) {
		s.AlertsCreated++
	}
	if e.Details != nil && e.Details.RiskLevel != "" {
		lvl := model.RiskLevel(e.Details.RiskLevel)
		if s.MaxRiskLevel == "" || !model.RiskLevel(s.MaxRiskLevel).AtLeast(lvl) {
			s.MaxRiskLevel = string(lvl)
		}
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}

// Tail returns the last n entries of the log. Malformed lines are skipped.
func Tail(path string, n int) ([]AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := newScanner(f)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
		if n > 0 && len(entries) > n {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return entries, nil
}

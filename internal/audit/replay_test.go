package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/journeywatch/internal/model"
)

var replayBase = time.Date(2026, 1, 15, 22, 0, 0, 0, time.UTC)

// writeTestLog creates a temp audit log with one night journey (j-aaa),
// a second journey (j-bbb) and an unrelated login.
func writeTestLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-audit.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	at := func(sec int) string { return replayBase.Add(time.Duration(sec) * time.Second).Format(TimestampFormat) }
	conf := func(v float64) *float64 { return &v }

	entries := []AuditEntry{
		{Timestamp: at(0), UserID: "u-1", Action: "journey_update", ResourceID: "j-aaa", ResourceType: "journey",
			Details: &model.AuditDetails{Location: &model.Location{Lat: 23.1, Lng: 72.7}, MovementState: model.Walking}},
		{Timestamp: at(0), UserID: "u-1", Action: "risk_assessment", ResourceID: "j-aaa", ResourceType: "journey",
			Details: &model.AuditDetails{RiskLevel: "MEDIUM", Factors: []string{"night_time"}, Confidence: conf(0.3)}},
		{Timestamp: at(2), UserID: "u-2", Action: "decision_made", ResourceID: "j-bbb", ResourceType: "journey",
			Details: &model.AuditDetails{DecisionAction: "silent_monitoring", RiskLevel: "LOW", Confidence: conf(0)}},
		{Timestamp: at(4), UserID: "u-1", Action: "risk_assessment", ResourceID: "j-aaa", ResourceType: "journey",
			Details: &model.AuditDetails{RiskLevel: "CRITICAL", Factors: []string{"night_time", "isolated_area", "low_battery"}, Confidence: conf(0.85)}},
		{Timestamp: at(4), UserID: "u-1", Action: "alert_created", ResourceID: "a-1", ResourceType: "alert",
			Details: &model.AuditDetails{AlertType: "automated_alert", Priority: "critical", Message: "Critical risk detected", JourneyID: "j-aaa"}},
		{Timestamp: at(6), UserID: "u-3", Action: "user_login"},
		{Timestamp: at(8), UserID: "u-1", Action: "risk_assessment", ResourceID: "j-aaa", ResourceType: "journey",
			Details: &model.AuditDetails{RiskLevel: "HIGH", Factors: []string{"night_time"}, Confidence: conf(0.5)}},
	}

	for _, e := range entries {
		if err := log.Record(e); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestReplayFiltersByJourney(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{JourneyID: "j-aaa"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 5 {
		t.Fatalf("expected 5 entries for j-aaa, got %d", len(result.Entries))
	}
	for _, e := range result.Entries {
		if e.JourneyID() != "j-aaa" {
			t.Errorf("unexpected journey: %q", e.JourneyID())
		}
	}
}

func TestReplayIncludesAlertsForJourney(t *testing.T) {
	path := writeTestLog(t)

	result, _ := Replay(path, ReplayFilter{JourneyID: "j-aaa"})
	if result.Summary.AlertsCreated != 1 {
		t.Errorf("expected 1 alert, got %d", result.Summary.AlertsCreated)
	}
}

func TestReplaySummary(t *testing.T) {
	path := writeTestLog(t)

	result, _ := Replay(path, ReplayFilter{JourneyID: "j-aaa"})
	s := result.Summary
	if s.Total != 5 {
		t.Errorf("total = %d", s.Total)
	}
	if s.Actions["risk_assessment"] != 3 || s.Actions["journey_update"] != 1 || s.Actions["alert_created"] != 1 {
		t.Errorf("unexpected action counts: %v", s.Actions)
	}
	if s.MaxRiskLevel != "CRITICAL" {
		t.Errorf("max risk = %q, want CRITICAL", s.MaxRiskLevel)
	}
	if s.FirstTimestamp != "2026-01-15T22:00:00.000Z" || s.LastTimestamp != "2026-01-15T22:00:08.000Z" {
		t.Errorf("unexpected range %s - %s", s.FirstTimestamp, s.LastTimestamp)
	}
}

func TestReplayFiltersByUser(t *testing.T) {
	path := writeTestLog(t)

	result, _ := Replay(path, ReplayFilter{UserID: "u-2"})
	if len(result.Entries) != 1 || result.Entries[0].ResourceID != "j-bbb" {
		t.Errorf("unexpected entries: %+v", result.Entries)
	}
}

func TestReplayTimeRange(t *testing.T) {
	path := writeTestLog(t)

	result, _ := Replay(path, ReplayFilter{
		JourneyID: "j-aaa",
		From:      replayBase.Add(3 * time.Second),
		To:        replayBase.Add(5 * time.Second),
	})
	if len(result.Entries) != 2 {
		t.Errorf("expected 2 entries in [3s,5s], got %d", len(result.Entries))
	}
}

func TestReplayUnknownJourney(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{JourneyID: "j-none"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 0 || result.Summary.Total != 0 {
		t.Errorf("expected no entries, got %d", len(result.Entries))
	}
}

func TestReplaySkipsMalformedLines(t *testing.T) {
	path := writeTestLog(t)
	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	f.WriteString("{broken\n")
	f.Close()

	result, err := Replay(path, ReplayFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 7 {
		t.Errorf("expected 7 valid entries, got %d", len(result.Entries))
	}
}

func TestReplayMissingFile(t *testing.T) {
	if _, err := Replay(filepath.Join(t.TempDir(), "nope.jsonl"), ReplayFilter{}); err == nil {
		t.Error("expected error for missing file")
	}
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/journeywatch/internal/audit"
	"github.com/ppiankov/journeywatch/internal/model"
	"github.com/ppiankov/journeywatch/internal/store"
)

// runCLI executes the root command with an isolated HOME and no config files.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{
		"--config", filepath.Join(home, "absent.yaml"),
		"--env-file", filepath.Join(home, "absent.env"),
	}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, `"name": "journeywatch"`) {
		t.Errorf("unexpected output %q", out)
	}
}

func TestZonesCheck(t *testing.T) {
	out, err := runCLI(t, "zones", "check", "23.05", "72.60")
	if err != nil {
		t.Fatalf("zones check: %v", err)
	}
	if !strings.Contains(out, "industrial_area") {
		t.Errorf("expected unsafe zone in output, got %q", out)
	}
	if !strings.Contains(out, "Nearest safe:     shopping_mall") {
		t.Errorf("expected nearest safe zone, got %q", out)
	}

	if _, err := runCLI(t, "zones", "check", "north", "72.60"); err == nil {
		t.Error("expected error for non-numeric latitude")
	}
}

func TestZonesList(t *testing.T) {
	out, err := runCLI(t, "zones", "list")
	if err != nil {
		t.Fatalf("zones list: %v", err)
	}
	for _, name := range []string{"university", "shopping_mall", "industrial_area"} {
		if !strings.Contains(out, name) {
			t.Errorf("missing zone %s in %q", name, out)
		}
	}
}

func TestAssessFromFlags(t *testing.T) {
	out, err := runCLI(t, "assess",
		"--journey", "j-cli",
		"--at", "2026-03-01T23:15:00Z",
		"--lat", "0", "--lng", "0",
		"--speed", "0.05",
		"--movement", "walking",
		"--battery", "5",
		"--explain")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}

	var report struct {
		Assessment    model.RiskAssessment  `json:"risk_assessment"`
		Decision      model.DecisionOutput  `json:"decision"`
		Result        *model.DispatchResult `json:"action_result"`
		Contributions []json.RawMessage     `json:"contributions"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.Assessment.Level != model.RiskCritical {
		t.Errorf("level = %s, want CRITICAL", report.Assessment.Level)
	}
	if report.Decision.Action != model.AlertEscalation {
		t.Errorf("action = %s, want alert_escalation", report.Decision.Action)
	}
	if report.Result != nil {
		t.Error("assess must not dispatch")
	}
	if len(report.Contributions) != 4 {
		t.Errorf("expected 4 contributions, got %d", len(report.Contributions))
	}
}

func TestAssessRejectsInvalidSample(t *testing.T) {
	_, err := runCLI(t, "assess",
		"--at", "2026-03-01T12:00:00Z",
		"--battery", "150",
		"--explain=false")
	if err == nil {
		t.Error("expected validation error for battery 150")
	}
	assessBattery = 100
}

func writeAuditLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := audit.Open(path)
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	defer l.Close()

	conf := 0.85
	events := []model.AuditEvent{
		{UserID: "u-1", Action: model.AuditRiskAssessment, ResourceID: "j-1", ResourceType: model.ResourceJourney,
			Details: &model.AuditDetails{RiskLevel: "CRITICAL", Confidence: &conf, Factors: []string{"night_time"}}},
		{UserID: "u-1", Action: model.AuditAlertCreated, ResourceID: "a-1", ResourceType: model.ResourceAlert,
			Details: &model.AuditDetails{AlertType: "automated_alert", Priority: "critical", JourneyID: "j-1"}},
	}
	for i, ev := range events {
		ev.Timestamp = time.Date(2026, 3, 1, 23, 15, i, 0, time.UTC)
		if err := l.Append(context.Background(), ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return path
}

func TestAuditVerifyAndReplay(t *testing.T) {
	path := writeAuditLog(t)

	out, err := runCLI(t, "audit", "verify", path)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out, "OK: 2 entries verified") || !strings.Contains(out, "Head: sha256:") {
		t.Errorf("unexpected verify output %q", out)
	}
	if !strings.Contains(out, "alert_created") {
		t.Errorf("verify output should count alert_created entries: %q", out)
	}

	replayFormat = "text"
	out, err = runCLI(t, "audit", "replay", "j-1", path)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(out, "Journey: j-1") || !strings.Contains(out, "Alerts: 1") {
		t.Errorf("unexpected replay output %q", out)
	}

	tailLines = 1
	out, err = runCLI(t, "audit", "tail", path)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if !strings.Contains(out, "alert_created") || strings.Contains(out, "risk_assessment") {
		t.Errorf("tail -n 1 should show only the last entry, got %q", out)
	}
	tailLines = 10
}

func TestAuditVerifyDetectsMissingLog(t *testing.T) {
	if _, err := runCLI(t, "audit", "verify", filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Error("expected failure for missing log")
	}
}

func TestAlertsListAndResolve(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "alerts.db")
	auditPath := filepath.Join(dir, "audit.jsonl")
	t.Setenv("JOURNEYWATCH_STORE", "sqlite")
	t.Setenv("JOURNEYWATCH_SQLITE_PATH", dbPath)
	t.Setenv("JOURNEYWATCH_AUDIT_LOG", auditPath)

	s, err := store.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_, err = s.Insert(context.Background(), model.Alert{
		ID:        "a-cli",
		JourneyID: "j-1",
		UserID:    "u-1",
		Type:      model.AlertAutomated,
		Message:   "CRITICAL RISK",
		Priority:  model.PriorityCritical,
		Status:    model.AlertActive,
		CreatedAt: time.Date(2026, 3, 1, 23, 15, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	s.Close()

	alertsActive = true
	out, err := runCLI(t, "alerts", "list", "--active")
	if err != nil {
		t.Fatalf("alerts list: %v", err)
	}
	if !strings.Contains(out, "a-cli") {
		t.Errorf("expected alert in list, got %q", out)
	}

	out, err = runCLI(t, "alerts", "resolve", "a-cli", "--by", "operator-7")
	if err != nil {
		t.Fatalf("alerts resolve: %v", err)
	}
	if !strings.Contains(out, "a-cli resolved") {
		t.Errorf("unexpected resolve output %q", out)
	}

	out, err = runCLI(t, "alerts", "list", "--active")
	if err != nil {
		t.Fatalf("alerts list: %v", err)
	}
	if strings.Contains(out, "a-cli") {
		t.Errorf("resolved alert still listed as active: %q", out)
	}
	alertsActive = false

	entries, err := audit.Tail(auditPath, 1)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != string(model.AuditAlertResolved) || entries[0].UserID != "operator-7" {
		t.Errorf("expected alert_resolved by operator-7, got %+v", entries)
	}
}

package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/journeywatch/internal/audit"
	"github.com/ppiankov/journeywatch/internal/decision"
	"github.com/ppiankov/journeywatch/internal/dispatch"
	"github.com/ppiankov/journeywatch/internal/model"
	"github.com/ppiankov/journeywatch/internal/pipeline"
	"github.com/ppiankov/journeywatch/internal/risk"
	"github.com/ppiankov/journeywatch/internal/store"
	"github.com/ppiankov/journeywatch/internal/zone"
)

// testServer spins up an in-process gRPC server on a random port and returns a connection.
func testServer(t *testing.T) (*grpc.ClientConn, string, func()) {
	t.Helper()

	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	auditLog, err := audit.Open(auditPath)
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	p := pipeline.New(
		risk.NewAnalyzer(zone.NewClassifier(zone.DefaultZones), risk.Options{}),
		decision.NewEngine(),
		dispatch.New(store.NewMemory(), auditLog),
		auditLog)
	srv := New(Config{}, p, nil)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.ServeOn(lis)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		srv.GracefulStop()
		t.Fatalf("dial: %v", err)
	}

	cleanup := func() {
		conn.Close()
		srv.GracefulStop()
		auditLog.Close()
	}
	return conn, auditPath, cleanup
}

func sampleStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	base := map[string]any{
		"journey_id":     "j-grpc",
		"timestamp":      "2026-03-01T14:00:00Z",
		"location":       map[string]any{"lat": 23.02, "lng": 72.57},
		"speed":          1.2,
		"movement_state": "walking",
		"battery_level":  80,
	}
	for k, v := range fields {
		base[k] = v
	}
	s, err := structpb.NewStruct(base)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func withUser(user string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), UserMetadataKey, user)
}

func TestIngestReturnsOutcome(t *testing.T) {
	conn, _, cleanup := testServer(t)
	defer cleanup()

	resp := new(structpb.Struct)
	err := conn.Invoke(withUser("u-1"), IngestMethod, sampleStruct(t, nil), resp)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	var out pipeline.Outcome
	if err := FromStruct(resp, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Assessment.Level != model.RiskLow {
		t.Errorf("level = %s, want LOW", out.Assessment.Level)
	}
	if out.Decision.Action != model.SilentMonitoring {
		t.Errorf("action = %s, want silent_monitoring", out.Decision.Action)
	}
	if out.Result == nil || !out.Result.Executed {
		t.Errorf("expected executed result, got %+v", out.Result)
	}
}

func TestIngestRequiresUser(t *testing.T) {
	conn, _, cleanup := testServer(t)
	defer cleanup()

	err := conn.Invoke(context.Background(), IngestMethod, sampleStruct(t, nil), new(structpb.Struct))
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	conn, _, cleanup := testServer(t)
	defer cleanup()

	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"invalid battery", map[string]any{"battery_level": 140}},
		{"unknown movement", map[string]any{"movement_state": "flying"}},
		{"unknown field", map[string]any{"heading": 90}},
		{"bad timestamp", map[string]any{"timestamp": "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := conn.Invoke(withUser("u-1"), IngestMethod, sampleStruct(t, tt.fields), new(structpb.Struct))
			if status.Code(err) != codes.InvalidArgument {
				t.Errorf("expected InvalidArgument, got %v", err)
			}
		})
	}
}

func TestAssessAuditsOnlyIdentifiedCallers(t *testing.T) {
	conn, auditPath, cleanup := testServer(t)
	defer cleanup()

	if err := conn.Invoke(context.Background(), AssessMethod, sampleStruct(t, nil), new(structpb.Struct)); err != nil {
		t.Fatalf("anonymous Assess: %v", err)
	}
	if err := conn.Invoke(withUser("u-1"), AssessMethod, sampleStruct(t, nil), new(structpb.Struct)); err != nil {
		t.Fatalf("Assess: %v", err)
	}

	result, err := audit.Replay(auditPath, audit.ReplayFilter{JourneyID: "j-grpc"})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(result.Entries))
	}
	if result.Entries[0].Action != string(model.AuditRiskAssessment) || result.Entries[0].UserID != "u-1" {
		t.Errorf("unexpected entry %+v", result.Entries[0])
	}
}

func TestStructRoundTripRejectsUnknownFields(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"journey_id": "j", "extra": true})
	if err != nil {
		t.Fatal(err)
	}
	var sample model.TelemetrySample
	if err := FromStruct(s, &sample); err == nil {
		t.Error("expected unknown field error")
	}
	if err := FromStruct(nil, &sample); err == nil {
		t.Error("expected error for nil payload")
	}
}

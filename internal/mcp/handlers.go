package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/journeywatch/internal/model"
	"github.com/ppiankov/journeywatch/internal/pipeline"
	"github.com/ppiankov/journeywatch/internal/risk"
)

// AssessInput is one telemetry reading, flattened for tool callers.
type AssessInput struct {
	JourneyID     string  `json:"journey_id" jsonschema:"journey identifier"`
	Timestamp     string  `json:"timestamp,omitempty" jsonschema:"RFC3339 reading time, defaults to now"`
	Lat           float64 `json:"lat" jsonschema:"latitude in degrees"`
	Lng           float64 `json:"lng" jsonschema:"longitude in degrees"`
	Speed         float64 `json:"speed" jsonschema:"speed in meters per second"`
	MovementState string  `json:"movement_state" jsonschema:"walking, running, driving, cycling or stationary"`
	BatteryLevel  int     `json:"battery_level" jsonschema:"battery percentage 0-100"`
}

// AssessOutput is the assessment plus the would-be decision.
type AssessOutput struct {
	RiskLevel     string              `json:"risk_level"`
	Confidence    float64             `json:"confidence"`
	Score         float64             `json:"score"`
	Factors       []string            `json:"factors"`
	Action        string              `json:"action"`
	Message       string              `json:"message"`
	Contributions []risk.Contribution `json:"contributions"`
}

// ZoneCheckInput is a coordinate.
type ZoneCheckInput struct {
	Lat float64 `json:"lat" jsonschema:"latitude in degrees"`
	Lng float64 `json:"lng" jsonschema:"longitude in degrees"`
}

// ZoneCheckOutput reports zone proximity.
type ZoneCheckOutput struct {
	Isolated             bool    `json:"isolated"`
	NearUnsafeZone       bool    `json:"near_unsafe_zone"`
	UnsafeZone           string  `json:"unsafe_zone,omitempty"`
	NearestSafeZone      string  `json:"nearest_safe_zone,omitempty"`
	NearestSafeDistanceM float64 `json:"nearest_safe_distance_m,omitempty"`
}

func (s *Server) handleAssess(ctx context.Context, req *mcpsdk.CallToolRequest, input AssessInput) (*mcpsdk.CallToolResult, AssessOutput, error) {
	sample, err := s.sampleFrom(input)
	if err != nil {
		return nil, AssessOutput{}, err
	}

	out, err := s.pipeline.Assess(ctx, pipeline.Caller{}, sample, false)
	if err != nil {
		return nil, AssessOutput{}, err
	}
	contribs, err := s.pipeline.Explain(sample)
	if err != nil {
		return nil, AssessOutput{}, err
	}
	if contribs == nil {
		contribs = []risk.Contribution{}
	}

	return nil, AssessOutput{
		RiskLevel:     string(out.Assessment.Level),
		Confidence:    out.Assessment.Confidence,
		Score:         out.Assessment.Score,
		Factors:       out.Assessment.Factors.Strings(),
		Action:        string(out.Decision.Action),
		Message:       out.Decision.Message,
		Contributions: contribs,
	}, nil
}

func (s *Server) sampleFrom(input AssessInput) (model.TelemetrySample, error) {
	ts := s.clock.Now().UTC()
	if input.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, input.Timestamp)
		if err != nil {
			return model.TelemetrySample{}, fmt.Errorf("timestamp: %w", err)
		}
		ts = parsed
	}
	return model.TelemetrySample{
		JourneyID:     input.JourneyID,
		Timestamp:     ts,
		Location:      model.Location{Lat: input.Lat, Lng: input.Lng},
		Speed:         input.Speed,
		MovementState: model.MovementState(input.MovementState),
		BatteryLevel:  input.BatteryLevel,
	}, nil
}

func (s *Server) handleZoneCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input ZoneCheckInput) (*mcpsdk.CallToolResult, ZoneCheckOutput, error) {
	if input.Lat < -90 || input.Lat > 90 || input.Lng < -180 || input.Lng > 180 {
		return nil, ZoneCheckOutput{}, fmt.Errorf("coordinate (%v, %v) out of range", input.Lat, input.Lng)
	}

	p := s.zones.Check(model.Location{Lat: input.Lat, Lng: input.Lng})
	out := ZoneCheckOutput{
		Isolated:        p.Isolated,
		NearUnsafeZone:  p.NearUnsafeZone,
		UnsafeZone:      p.UnsafeZone,
		NearestSafeZone: p.NearestSafe,
	}
	if p.NearestSafeDist != nil {
		out.NearestSafeDistanceM = *p.NearestSafeDist
	}
	return nil, out, nil
}

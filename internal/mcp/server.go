// Package mcp exposes journeywatch risk checks as MCP tools over stdio.
// Every tool is a dry run: nothing is dispatched or audited.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/zoobzio/clockz"

	"github.com/ppiankov/journeywatch/internal/pipeline"
	"github.com/ppiankov/journeywatch/internal/zone"
)

// Server wraps the MCP SDK server.
type Server struct {
	mcpServer *mcpsdk.Server
	pipeline  *pipeline.Pipeline
	zones     *zone.Classifier
	clock     clockz.Clock
}

// New creates an MCP server. The pipeline is only used on its
// analyze-only path.
func New(p *pipeline.Pipeline, zones *zone.Classifier, version string) *Server {
	s := &Server{
		pipeline: p,
		zones:    zones,
		clock:    clockz.RealClock,
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "journeywatch",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves on stdio. Blocks until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "journeywatch_assess",
		Description: "Assess the safety risk of one telemetry reading and report the response action that would be taken (dry-run, nothing is dispatched).",
	}, s.handleAssess)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "journeywatch_zone_check",
		Description: "Report whether a coordinate is isolated from safe zones or inside an unsafe zone, and the nearest safe zone.",
	}, s.handleZoneCheck)
}

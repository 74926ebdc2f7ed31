// Package client calls a remote journeywatch TelemetryService.
package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/journeywatch/internal/model"
	"github.com/ppiankov/journeywatch/internal/pipeline"
	"github.com/ppiankov/journeywatch/internal/server"
)

// CallTimeout bounds each RPC.
const CallTimeout = 5 * time.Second

// Client connects to a journeywatch gRPC server.
type Client struct {
	conn *grpc.ClientConn
}

// New creates a client for addr. The connection is established lazily.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telemetry server: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Ingest sends a sample through the remote pipeline on behalf of userID.
func (c *Client) Ingest(ctx context.Context, userID string, sample model.TelemetrySample) (pipeline.Outcome, error) {
	return c.call(ctx, server.IngestMethod, userID, sample)
}

// Assess asks the remote server for an analyze-only outcome. An empty
// userID keeps the call out of the audit log.
func (c *Client) Assess(ctx context.Context, userID string, sample model.TelemetrySample) (pipeline.Outcome, error) {
	return c.call(ctx, server.AssessMethod, userID, sample)
}

func (c *Client) call(ctx context.Context, method, userID string, sample model.TelemetrySample) (pipeline.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	if userID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, server.UserMetadataKey, userID)
	}

	req, err := server.ToStruct(sample)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		return pipeline.Outcome{}, err
	}

	var out pipeline.Outcome
	if err := server.FromStruct(resp, &out); err != nil {
		return pipeline.Outcome{}, err
	}
	return out, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

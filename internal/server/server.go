// Package server is the gRPC transport for the telemetry pipeline.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/journeywatch/internal/model"
	"github.com/ppiankov/journeywatch/internal/pipeline"
)

// Config holds gRPC server configuration.
type Config struct {
	Port int
}

// Server implements TelemetryService on top of a pipeline.
type Server struct {
	pipeline   *pipeline.Pipeline
	logger     *zap.Logger
	cfg        Config
	grpcServer *grpc.Server
}

// New creates a gRPC server. A nil logger discards output.
func New(cfg Config, p *pipeline.Pipeline, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pipeline:   p,
		logger:     logger,
		cfg:        cfg,
		grpcServer: grpc.NewServer(),
	}
	RegisterTelemetryServiceServer(s.grpcServer, s)
	return s
}

// Serve starts the gRPC server on the configured port. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return s.ServeOn(lis)
}

// ServeOn starts the gRPC server on the given listener.
func (s *Server) ServeOn(lis net.Listener) error {
	s.logger.Info("grpc listening", zap.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Ingest runs the full pipeline for one sample.
func (s *Server) Ingest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c := callerFrom(ctx)
	if c.UserID == "" {
		return nil, status.Errorf(codes.Unauthenticated, "missing %s metadata", UserMetadataKey)
	}
	var sample model.TelemetrySample
	if err := FromStruct(req, &sample); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	out, err := s.pipeline.Process(ctx, c, sample)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.respond(out)
}

// Assess classifies a sample without dispatching. Calls that carry a
// caller identity are audited.
func (s *Server) Assess(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c := callerFrom(ctx)
	var sample model.TelemetrySample
	if err := FromStruct(req, &sample); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	out, err := s.pipeline.Assess(ctx, c, sample, c.UserID != "")
	if err != nil {
		return nil, toStatus(err)
	}
	return s.respond(out)
}

func (s *Server) respond(out pipeline.Outcome) (*structpb.Struct, error) {
	resp, err := ToStruct(out)
	if err != nil {
		s.logger.Error("encode response", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return resp, nil
}

func callerFrom(ctx context.Context) pipeline.Caller {
	var c pipeline.Caller
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(UserMetadataKey); len(v) > 0 {
			c.UserID = v[0]
		}
		if v := md.Get("user-agent"); len(v) > 0 {
			c.Meta.UserAgent = v[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			c.Meta.IPAddress = host
		}
	}
	return c
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrNoCaller):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, model.ErrInvalidSample):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "journeywatch.v1.TelemetryService"

// Full method names, as used by clients.
const (
	IngestMethod = "/" + ServiceName + "/Ingest"
	AssessMethod = "/" + ServiceName + "/Assess"
)

// UserMetadataKey carries the caller identity resolved upstream.
const UserMetadataKey = "x-user-id"

// TelemetryServiceServer is the server API. Requests carry a telemetry
// sample and responses a pipeline outcome, both as JSON-shaped structs.
type TelemetryServiceServer interface {
	Ingest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Assess(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(TelemetryServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TelemetryServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TelemetryServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes TelemetryService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TelemetryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ingest",
			Handler: unaryHandler(IngestMethod, func(s TelemetryServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.Ingest(ctx, in)
			}),
		},
		{
			MethodName: "Assess",
			Handler: unaryHandler(AssessMethod, func(s TelemetryServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.Assess(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "journeywatch/v1/telemetry.proto",
}

// RegisterTelemetryServiceServer registers srv on s.
func RegisterTelemetryServiceServer(s grpc.ServiceRegistrar, srv TelemetryServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

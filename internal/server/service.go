// Package server exposes extraction, export and saved prompts over gRPC.
package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "docextract.v1.ExtractionService"

// ExtractionService is the server API. Every message is a structpb.Struct.
type ExtractionService interface {
	ExtractDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SubmitExtraction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetExtraction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListExtractions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteExtraction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ExportExtraction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SavePrompt(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetPrompt(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListPrompts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeletePrompt(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type handlerFunc func(ExtractionService, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, h handlerFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				out, err := h(srv.(ExtractionService), ctx, req.(*structpb.Struct))
				if err != nil {
					return nil, common.ToStatus(err)
				}
				return out, nil
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, call)
		},
	}
}

// ServiceDesc describes ExtractionService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExtractionService)(nil),
	Methods: []grpc.MethodDesc{
		method("ExtractDocument", ExtractionService.ExtractDocument),
		method("SubmitExtraction", ExtractionService.SubmitExtraction),
		method("GetJob", ExtractionService.GetJob),
		method("GetExtraction", ExtractionService.GetExtraction),
		method("ListExtractions", ExtractionService.ListExtractions),
		method("DeleteExtraction", ExtractionService.DeleteExtraction),
		method("ExportExtraction", ExtractionService.ExportExtraction),
		method("SavePrompt", ExtractionService.SavePrompt),
		method("GetPrompt", ExtractionService.GetPrompt),
		method("ListPrompts", ExtractionService.ListPrompts),
		method("DeletePrompt", ExtractionService.DeletePrompt),
	},
	Metadata: "docextract/v1/extraction.proto",
}

func RegisterExtractionServiceServer(s grpc.ServiceRegistrar, srv ExtractionService) {
	s.RegisterService(&ServiceDesc, srv)
}

// New builds a grpc.Server carrying srv and the standard health service,
// which starts out SERVING for both the server and ServiceName.
func New(srv ExtractionService, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(RequestLogger(logger))}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterExtractionServiceServer(gs, srv)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// grpcurl discovery
	reflection.Register(gs)
	return gs, hs
}

const requestIDHeader = "x-request-id"

// RequestLogger tags each call with a request id (taken from the
// x-request-id header when present, echoed back) and logs its outcome.
func RequestLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(requestIDHeader); len(ids) > 0 && ids[0] != "" {
				ctx = common.WithRequestID(ctx, ids[0])
			}
		}
		ctx, id := common.EnsureRequestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, id))

		resp, err := handler(ctx, req)
		log := common.LoggerFrom(ctx, logger).With("method", info.FullMethod, "elapsed_ms", time.Since(start).Milliseconds())
		if err != nil {
			log.Warn("grpc.request.failed", "code", status.Code(err).String(), "error", err)
			return resp, err
		}
		log.Info("grpc.request.ok")
		return resp, nil
	}
}

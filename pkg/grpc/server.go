package grpc

import (
	"context"
	"time"

	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer builds a gRPC server with the standard health service
// registered and returns both.
func NewServer(l logger.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(l)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

func loggingInterceptor(l logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			l.Warnf(ctx, "grpc %s failed in %s: %v", info.FullMethod, time.Since(start), err)
		} else {
			l.Debugf(ctx, "grpc %s served in %s", info.FullMethod, time.Since(start))
		}
		return resp, err
	}
}

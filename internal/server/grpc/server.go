// Package grpcserver hosts the operational gRPC endpoint: health checks,
// reflection in development, and the shared interceptor chain.
package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Options configures New.
type Options struct {
	Log *zap.Logger
	// Reflection registers the reflection service (dev only).
	Reflection bool
	// Extra server options, e.g. grpc.Creds.
	ServerOptions []grpc.ServerOption
}

// New builds a gRPC server with recover and logging interceptors and a
// registered health service. The returned health server starts in SERVING.
func New(o Options) (*grpc.Server, *health.Server) {
	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}
	opts := append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
	}, o.ServerOptions...)
	s := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if o.Reflection {
		reflection.Register(s)
	}
	return s, hs
}

// WatchDependency flips the overall health status according to ping until ctx
// is done. The first check runs immediately.
func WatchDependency(ctx context.Context, hs *health.Server, log *zap.Logger, every time.Duration, ping func(context.Context) error) {
	t := time.NewTicker(every)
	defer t.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		st := healthpb.HealthCheckResponse_SERVING
		pctx, cancel := context.WithTimeout(ctx, every)
		err := ping(pctx)
		cancel()
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if st != last {
			log.Info("health changed", zap.String("status", st.String()), zap.Error(err))
			hs.SetServingStatus("", st)
			last = st
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

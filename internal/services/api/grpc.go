package api

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported on the gRPC health service next to "".
const ServiceName = "pju.Monitoring"

// HealthServer publishes the readiness checks on the standard gRPC health
// service so orchestrators can probe the service over gRPC.
type HealthServer struct {
	srv    *grpc.Server
	health *health.Server
	checks Checks
	logger *zap.Logger
}

func NewHealthServer(checks Checks, logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HealthServer{
		srv:    grpc.NewServer(),
		health: health.NewServer(),
		checks: checks,
		logger: logger.Named("grpc-health"),
	}
	healthpb.RegisterHealthServer(h.srv, h.health)
	return h
}

// Refresh runs the checks once and updates the served status.
func (h *HealthServer) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if failed := h.checks.Run(ctx); len(failed) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		for name, err := range failed {
			h.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

// Serve refreshes the status every interval and serves lis until ctx is
// cancelled.
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener, interval time.Duration) error {
	h.Refresh(ctx)

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				h.health.Shutdown()
				h.srv.GracefulStop()
				return
			case <-t.C:
				h.Refresh(ctx)
			}
		}
	}()

	h.logger.Info("gRPC health listening", zap.String("addr", lis.Addr().String()))
	return h.srv.Serve(lis)
}

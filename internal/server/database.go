package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is satisfied by *repository.DB.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// WatchDatabase pings db every interval and reports NOT_SERVING for
// ServiceName while the record store is unreachable. It returns when ctx is
// done.
func WatchDatabase(ctx context.Context, db Pinger, hs *health.Server, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	serving := true
	check := func() {
		err := db.HealthCheck(ctx, interval/2)
		switch {
		case err != nil && serving:
			logger.Error("db.health.failed", "error", err)
			hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			serving = false
		case err == nil && !serving:
			logger.Info("db.health.recovered")
			hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
			serving = true
		}
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}

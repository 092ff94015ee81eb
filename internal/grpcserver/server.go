package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/artifact-api/internal/logging"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "artifact.api"

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Server exposes the standard gRPC health protocol. The status flips to
// NOT_SERVING when any registered check fails.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]Check
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	serving bool
}

// New builds a health server. interval controls how often checks run.
func New(checks map[string]Check, interval time.Duration, logger *zap.Logger) *Server {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s := &Server{
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		checks:   checks,
		interval: interval,
		timeout:  interval / 2,
		logger:   logger.Named("grpc_health"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Probe runs every check once and updates the published status.
func (s *Server) Probe(ctx context.Context) bool {
	ok := true
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			ok = false
			s.logger.Warn("dependency check failed", append(logging.ErrorFields(err), zap.String("dependency", name))...)
		}
	}

	s.mu.Lock()
	changed := s.serving != ok
	s.serving = ok
	s.mu.Unlock()

	if ok {
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
	} else {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	if changed {
		s.logger.Info("health status changed", zap.Bool("serving", ok))
	}
	return ok
}

// Serve probes dependencies on a ticker and serves gRPC on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Probe(ctx)

	errCh := make(chan error, 1)
	go func() {
		err := s.grpc.Serve(lis)
		if errors.Is(err, grpc.ErrServerStopped) {
			err = nil
		}
		errCh <- err
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Probe(ctx)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpc.GracefulStop()
			return <-errCh
		}
	}
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

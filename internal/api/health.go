package api

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/depth.camera/internal/stream"
	"github.com/banshee-data/depth.camera/internal/timeutil"
)

// CameraService is the health service name that tracks whether the
// camera stream is running. The empty service name reports the process.
const CameraService = "depthcam.Camera"

// Health publishes stream state over the standard gRPC health protocol.
type Health struct {
	srv    *health.Server
	stream *stream.Handler
}

func NewHealth(h *stream.Handler) *Health {
	hl := &Health{srv: health.NewServer(), stream: h}
	hl.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hl.Update()
	return hl
}

// Register adds the health service to s.
func (hl *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, hl.srv)
}

// Server exposes the underlying health implementation.
func (hl *Health) Server() *health.Server {
	return hl.srv
}

// Update sets CameraService from the stream state.
func (hl *Health) Update() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if hl.stream.IsRunning() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hl.srv.SetServingStatus(CameraService, status)
}

// Run refreshes the status every interval until ctx is done, then marks
// every service NOT_SERVING.
func (hl *Health) Run(ctx context.Context, clock timeutil.Clock, interval time.Duration) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hl.srv.Shutdown()
			return
		case <-ticker.C():
			hl.Update()
		}
	}
}

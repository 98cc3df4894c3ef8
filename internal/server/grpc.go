package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/alfredjeanlab/scanline/internal/model"
)

// ScannerService is the health service name that tracks the capture session.
// It reports SERVING only while a session is active; the empty service name
// reports the daemon itself.
const ScannerService = "scanline.Scanner"

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the health service and reflection, and returns the server ready to serve.
func NewGRPCServer(authToken string, hs *health.Server) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return srv
}

// NewHealthServer returns a health server with the daemon SERVING and the
// scanner NOT_SERVING until a session starts.
func NewHealthServer() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ScannerService, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// HealthUpdater returns a session state callback that mirrors the state into hs.
func HealthUpdater(hs *health.Server) func(model.SessionState) {
	return func(s model.SessionState) {
		st := healthpb.HealthCheckResponse_NOT_SERVING
		if s == model.SessionActive {
			st = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus(ScannerService, st)
	}
}

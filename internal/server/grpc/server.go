// Package grpc runs the operations endpoint: the standard gRPC health
// service, NOT_SERVING while the server is locked and SERVING once unlocked.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/nosuite/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StorageService is the health service name reported next to the overall
// "" entry.
const StorageService = "nosuite.Storage"

type HealthServer struct {
	address string
	health  *health.Server
	logger  logging.Logger
}

func NewHealthServer(address string, l logging.Logger) *HealthServer {
	s := &HealthServer{
		address: address,
		health:  health.NewServer(),
		logger:  l.With("module", "grpc_server"),
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetReady flips every service to SERVING.
func (s *HealthServer) SetReady() {
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	s.logger.Info(context.Background(), "health switched to serving")
}

func (s *HealthServer) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(StorageService, st)
}

func (s *HealthServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *HealthServer) Serve(ctx context.Context, listen net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))

	// registers service
	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

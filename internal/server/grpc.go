package server

import (
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer runs the standard gRPC health service so orchestration probes
// and mesh sidecars can watch the process over gRPC alongside the HTTP API.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	addr   string
	log    zerolog.Logger
}

func NewGRPCServer(addr string, log zerolog.Logger) *GRPCServer {
	server := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	// Reflection for grpcurl / grpcui.
	reflection.Register(server)

	return &GRPCServer{
		server: server,
		health: healthServer,
		addr:   addr,
		log:    log,
	}
}

// SetServing flips the reported health status once recovery completes.
func (s *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Serve blocks on the listener until Stop is called.
func (s *GRPCServer) Serve() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", s.addr).Msg("grpc server listening")
	return s.server.Serve(lis)
}

// Stop drains in-flight RPCs and shuts down.
func (s *GRPCServer) Stop() {
	s.server.GracefulStop()
}

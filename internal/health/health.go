// Package health serves the standard gRPC health checking protocol so that
// supervisors can tell whether a stream is running.
package health

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the service name reported alongside the overall status.
const Service = "telemetry.Stream"

// Server owns a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	addr     string
	hs       *health.Server
	server   *grpc.Server
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewServer creates a server that reports NOT_SERVING until SetServing.
func NewServer(addr string) *Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{addr: addr, hs: hs}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("health server already running")
	}
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis
	s.server = grpc.NewServer()
	healthpb.RegisterHealthServer(s.server, s.hs)
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Printf("[Health] gRPC health service listening on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			log.Printf("[Health] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// SetServing updates the status of both the overall server and Service.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.hs.SetServingStatus("", status)
	s.hs.SetServingStatus(Service, status)
}

// Stop marks every service NOT_SERVING and stops the server.
func (s *Server) Stop() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	s.hs.Shutdown()
	s.server.GracefulStop()
	s.wg.Wait()
	log.Printf("[Health] gRPC health service stopped")
}

package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/herdparty/logger"
)

// HealthService is the service name reported next to the overall status.
const HealthService = "herdparty.Room"

// HealthServer serves grpc.health.v1.Health.
type HealthServer struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
}

func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	h := &HealthServer{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
	}
	h.SetServing(false)
	return h, nil
}

func (h *HealthServer) Addr() string { return h.listener.Addr().String() }

// SetServing flips both the overall and the room status.
func (h *HealthServer) SetServing(on bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if on {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(HealthService, status)
}

// Serve runs the gRPC server until ctx is cancelled.
func (h *HealthServer) Serve(ctx context.Context) error {
	logger.Log.Infof("gRPC health server listening on %s", h.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- h.grpcServer.Serve(h.listener)
	}()

	select {
	case <-ctx.Done():
		h.health.Shutdown()
		h.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

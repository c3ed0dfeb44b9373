// Package grpc provides the gRPC health endpoint shared by portside binaries
// and the client-side readiness probe used by tools.
package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthEndpoint is a gRPC server exposing only the standard health service.
type HealthEndpoint struct {
	listener net.Listener
	server   *gogrpc.Server
	health   *health.Server
}

// NewHealthEndpoint listens on addr and marks "" and each named service as SERVING.
func NewHealthEndpoint(addr string, services ...string) (*HealthEndpoint, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	server := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	for _, service := range services {
		healthServer.SetServingStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
	}
	return &HealthEndpoint{listener: listener, server: server, health: healthServer}, nil
}

// Addr returns the bound listener address.
func (e *HealthEndpoint) Addr() string {
	if e == nil || e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Serve blocks serving health checks until Stop is called.
func (e *HealthEndpoint) Serve() error {
	if e == nil || e.server == nil {
		return fmt.Errorf("health endpoint is not configured")
	}
	if err := e.server.Serve(e.listener); err != nil && err != gogrpc.ErrServerStopped {
		return fmt.Errorf("serve gRPC health: %w", err)
	}
	return nil
}

// SetNotServing flips every registered service to NOT_SERVING ahead of shutdown.
func (e *HealthEndpoint) SetNotServing() {
	if e == nil || e.health == nil {
		return
	}
	e.health.Shutdown()
}

// Stop drains in-flight health checks and closes the listener.
func (e *HealthEndpoint) Stop() {
	if e == nil {
		return
	}
	e.SetNotServing()
	if e.server != nil {
		e.server.GracefulStop()
	}
	if e.listener != nil {
		_ = e.listener.Close()
	}
}

// WaitForHealth blocks until the gRPC health check reports SERVING or the context ends.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	backoff := 200 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			if logf != nil {
				logf("gRPC health check is SERVING")
			}
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("waiting for gRPC health: %v", err)
			} else {
				logf("waiting for gRPC health: status %s", response.GetStatus().String())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}

		if backoff < time.Second {
			backoff = min(backoff*2, time.Second)
		}
	}
}

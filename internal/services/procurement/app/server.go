// Package app wires the procurement runtime: storage, services, the JSON
// API, the gRPC health endpoint and Prometheus metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	platformgrpc "github.com/onemarinex/portside/internal/platform/grpc"
	"github.com/onemarinex/portside/internal/platform/httpx"
	"github.com/onemarinex/portside/internal/platform/telemetry/metrics"
	"github.com/onemarinex/portside/internal/platform/timeouts"
	"github.com/onemarinex/portside/internal/services/procurement/api/httpapi"
	"github.com/onemarinex/portside/internal/services/procurement/fulfillment"
	"github.com/onemarinex/portside/internal/services/procurement/identity"
	"github.com/onemarinex/portside/internal/services/procurement/quoting"
	"github.com/onemarinex/portside/internal/services/procurement/rfqs"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
	"github.com/onemarinex/portside/internal/services/procurement/storage/driver"
	"github.com/onemarinex/portside/internal/services/procurement/vendors"
)

// HealthService is the gRPC health service name reported while the API serves.
const HealthService = "portside.procurement"

const (
	defaultHTTPAddr = ":8080"
	defaultGRPCAddr = ":8082"
)

// Config controls procurement startup.
type Config struct {
	HTTPAddr       string
	GRPCAddr       string
	Store          driver.Config
	Identity       identity.Config
	VendorCacheTTL time.Duration
	// VendorCacheRedisAddr enables the vendor profile cache when set.
	VendorCacheRedisAddr string
}

// Server hosts the procurement HTTP API and its health endpoint.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	health     *platformgrpc.HealthEndpoint
	store      storage.Store
	redis      *redis.Client
	metrics    *metrics.Metrics
}

// New opens dependencies and binds listeners. Nothing is served until Serve.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if strings.TrimSpace(cfg.GRPCAddr) == "" {
		cfg.GRPCAddr = defaultGRPCAddr
	}
	if len(cfg.Identity.Key) == 0 {
		return nil, errors.New("identity signing key is required")
	}

	store, err := driver.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	server := &Server{store: store, metrics: metrics.New()}

	var vendorStore storage.VendorStore = store
	if addr := strings.TrimSpace(cfg.VendorCacheRedisAddr); addr != "" {
		client, err := vendors.NewRedisClient(ctx, addr)
		if err != nil {
			log.Printf("vendor cache disabled addr=%s err=%v", addr, err)
		} else {
			server.redis = client
			vendorStore = vendors.NewCachedStore(store, client, cfg.VendorCacheTTL, server.metrics)
			log.Printf("vendor cache enabled addr=%s ttl=%s", addr, cfg.VendorCacheTTL)
		}
	}

	api := httpapi.NewServer(httpapi.Deps{
		Auth:    identity.NewResolver(cfg.Identity),
		RFQs:    rfqs.NewService(store, vendorStore),
		Vendors: vendors.NewService(vendorStore),
		Quotes:  quoting.NewService(store, vendorStore, server.metrics),
		Orders:  fulfillment.NewService(store, server.metrics),
	})
	mux := api.Routes()
	mux.Handle("GET /metrics", server.metrics.Handler())

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	server.listener = listener
	server.httpServer = &http.Server{
		Handler: httpx.Chain(
			mux,
			httpx.RequestID(),
			httpx.RecoverPanic(),
			httpx.AccessLog(),
			server.metrics.Middleware(),
		),
		ReadHeaderTimeout: timeouts.ReadHeader,
		ReadTimeout:       timeouts.HTTPRead,
		WriteTimeout:      timeouts.HTTPWrite,
		IdleTimeout:       timeouts.HTTPIdle,
	}

	health, err := platformgrpc.NewHealthEndpoint(cfg.GRPCAddr, HealthService)
	if err != nil {
		server.Close()
		return nil, err
	}
	server.health = health
	return server, nil
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HealthAddr returns the gRPC health listener address.
func (s *Server) HealthAddr() string {
	if s == nil {
		return ""
	}
	return s.health.Addr()
}

// Run creates and serves a procurement server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the HTTP API and health endpoint until ctx is cancelled or
// either server fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("procurement api listening at %s", s.Addr())
	log.Printf("procurement health listening at %s", s.HealthAddr())

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.listener)
	}()
	healthErr := make(chan error, 1)
	go func() {
		healthErr <- s.health.Serve()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve http: %w", err)
		}
		httpErr <- nil
	case err := <-healthErr:
		serveErr = err
		healthErr <- nil
	}

	s.health.SetNotServing()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("procurement http shutdown: %v", err)
	}
	if err := <-httpErr; err != nil && !errors.Is(err, http.ErrServerClosed) && serveErr == nil {
		serveErr = fmt.Errorf("serve http: %w", err)
	}
	s.health.Stop()
	if err := <-healthErr; err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// Close releases server resources. It is safe to call more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("close vendor cache: %v", err)
		}
		s.redis = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close procurement store: %v", err)
		}
		s.store = nil
	}
}

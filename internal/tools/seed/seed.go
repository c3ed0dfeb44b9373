// Package seed loads demo procurement data through the public HTTP API.
//
// The seeder signs its own bearer tokens with the shared HMAC key, so it
// exercises the same authentication, validation and pricing paths as any
// client. It waits for the procurement gRPC health check before writing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/onemarinex/portside/internal/platform/discovery"
	platformgrpc "github.com/onemarinex/portside/internal/platform/grpc"
	"github.com/onemarinex/portside/internal/services/procurement/app"
	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/identity"
)

const defaultHealthTimeout = 30 * time.Second

// Config controls a seed run.
type Config struct {
	BaseURL       string
	GRPCAddr      string
	HealthTimeout time.Duration
	Identity      identity.Config
	Verbose       bool
}

// DefaultConfig returns in-network defaults for the procurement service.
func DefaultConfig() Config {
	return Config{
		BaseURL:       discovery.BaseURL("", discovery.ServiceProcurement),
		GRPCAddr:      discovery.Addr(discovery.ServiceProcurement, discovery.GRPC),
		HealthTimeout: defaultHealthTimeout,
	}
}

// Summary counts what a run created.
type Summary struct {
	Vendors int
	RFQs    int
	Quotes  int
	Orders  int
}

// Run waits for procurement health and then applies fixture.
func Run(ctx context.Context, cfg Config, fixture Fixture, out io.Writer) (Summary, error) {
	if out == nil {
		out = io.Discard
	}
	if len(cfg.Identity.Key) == 0 {
		return Summary{}, errors.New("identity signing key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return Summary{}, errors.New("base url is required")
	}
	if addr := strings.TrimSpace(cfg.GRPCAddr); addr != "" {
		logf := func(string, ...any) {}
		if cfg.Verbose {
			logf = log.Printf
		}
		timeout := cfg.HealthTimeout
		if timeout <= 0 {
			timeout = defaultHealthTimeout
		}
		if err := platformgrpc.ProbeHealth(ctx, addr, app.HealthService, timeout, logf); err != nil {
			return Summary{}, fmt.Errorf("wait for procurement: %w", err)
		}
	}

	s := &seeder{
		cfg:    cfg,
		client: newAPIClient(baseURL),
		tokens: make(map[string]string),
		out:    out,
	}
	return s.apply(ctx, fixture)
}

type seeder struct {
	cfg     Config
	client  *apiClient
	tokens  map[string]string
	out     io.Writer
	summary Summary
}

func (s *seeder) apply(ctx context.Context, fixture Fixture) (Summary, error) {
	for _, vendor := range fixture.Vendors {
		if err := s.applyVendor(ctx, vendor); err != nil {
			return s.summary, fmt.Errorf("vendor %s: %w", vendor.UserID, err)
		}
	}
	for _, rfq := range fixture.RFQs {
		if err := s.applyRFQ(ctx, rfq); err != nil {
			return s.summary, fmt.Errorf("rfq %q: %w", rfq.Title, err)
		}
	}
	fmt.Fprintf(s.out, "seeded vendors=%d rfqs=%d quotes=%d orders=%d\n",
		s.summary.Vendors, s.summary.RFQs, s.summary.Quotes, s.summary.Orders)
	return s.summary, nil
}

func (s *seeder) applyVendor(ctx context.Context, vendor VendorFixture) error {
	token, err := s.token(vendor.UserID, domain.RoleVendor)
	if err != nil {
		return err
	}
	body := map[string]any{
		"company_name": vendor.CompanyName,
		"ports_served": vendor.PortsServed,
	}
	if err := s.client.do(ctx, http.MethodPut, "/api/vendor/profile", token, body, nil); err != nil {
		return err
	}
	s.summary.Vendors++
	s.logf("vendor profile user=%s company=%q", vendor.UserID, vendor.CompanyName)
	return nil
}

func (s *seeder) applyRFQ(ctx context.Context, rfq RFQFixture) error {
	buyerToken, err := s.token(rfq.BuyerUserID, domain.RoleShippingCompany)
	if err != nil {
		return err
	}
	var created idResponse
	if err := s.client.do(ctx, http.MethodPost, "/api/rfqs", buyerToken, rfq.request(), &created); err != nil {
		return err
	}
	s.summary.RFQs++
	s.logf("rfq id=%s port=%s", created.ID, rfq.Port)

	for _, quote := range rfq.Quotes {
		vendorToken, err := s.token(quote.VendorUserID, domain.RoleVendor)
		if err != nil {
			return err
		}
		var submitted idResponse
		path := "/api/rfqs/" + created.ID + "/quotes"
		if err := s.client.do(ctx, http.MethodPost, path, vendorToken, quote.request(), &submitted); err != nil {
			return fmt.Errorf("quote from %s: %w", quote.VendorUserID, err)
		}
		s.summary.Quotes++
		s.logf("quote id=%s vendor=%s", submitted.ID, quote.VendorUserID)

		if !quote.Accept {
			continue
		}
		var order idResponse
		path = "/api/rfqs/" + created.ID + "/quotes/" + submitted.ID + "/accept"
		if err := s.client.do(ctx, http.MethodPost, path, buyerToken, nil, &order); err != nil {
			return fmt.Errorf("accept quote %s: %w", submitted.ID, err)
		}
		s.summary.Orders++
		s.logf("order id=%s quote=%s", order.ID, submitted.ID)
	}
	return nil
}

func (s *seeder) token(userID string, role domain.Role) (string, error) {
	key := string(role) + "/" + userID
	if token, ok := s.tokens[key]; ok {
		return token, nil
	}
	token, err := identity.Issue(s.cfg.Identity, domain.Caller{UserID: userID, Role: role}, time.Hour)
	if err != nil {
		return "", fmt.Errorf("issue token for %s: %w", userID, err)
	}
	s.tokens[key] = token
	return token, nil
}

func (s *seeder) logf(format string, args ...any) {
	if s.cfg.Verbose {
		fmt.Fprintf(s.out, format+"\n", args...)
	}
}

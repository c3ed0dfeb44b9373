package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onemarinex/portside/internal/services/procurement/app"
	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/identity"
	"github.com/onemarinex/portside/internal/services/procurement/storage/driver"
)

func startProcurement(t *testing.T) (*app.Server, identity.Config) {
	t.Helper()
	idCfg, err := identity.NewConfig("portside", "seed-test-signing-key-0123", nil)
	if err != nil {
		t.Fatalf("identity config: %v", err)
	}
	srv, err := app.New(context.Background(), app.Config{
		HTTPAddr: "127.0.0.1:0",
		GRPCAddr: "127.0.0.1:0",
		Store:    driver.Config{Driver: driver.SQLite, Path: filepath.Join(t.TempDir(), "procurement.db")},
		Identity: idCfg,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("timeout waiting for server shutdown")
		}
	})
	return srv, idCfg
}

func TestRunSeedsDemoFixture(t *testing.T) {
	srv, idCfg := startProcurement(t)
	var out bytes.Buffer

	summary, err := Run(context.Background(), Config{
		BaseURL:       "http://" + srv.Addr(),
		GRPCAddr:      srv.HealthAddr(),
		HealthTimeout: 5 * time.Second,
		Identity:      idCfg,
		Verbose:       true,
	}, DemoFixture(), &out)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	want := Summary{Vendors: 2, RFQs: 2, Quotes: 3, Orders: 1}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}
	if !strings.Contains(out.String(), "seeded vendors=2 rfqs=2 quotes=3 orders=1") {
		t.Fatalf("output = %q", out.String())
	}

	token, err := identity.Issue(idCfg, domain.Caller{UserID: "buyer-demo-1", Role: domain.RoleShippingCompany}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req, err := http.NewRequest(http.MethodGet, "http://"+srv.Addr()+"/api/orders", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	defer resp.Body.Close()
	var listed struct {
		Orders []struct {
			VendorUserID string `json:"vendor_user_id"`
			Port         string `json:"port"`
		} `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode orders: %v", err)
	}
	if len(listed.Orders) != 1 || listed.Orders[0].VendorUserID != "vendor-demo-1" || listed.Orders[0].Port != "Singapore" {
		t.Fatalf("orders = %+v", listed.Orders)
	}
}

func TestRunSurfacesAPIErrors(t *testing.T) {
	srv, idCfg := startProcurement(t)
	fixture := Fixture{
		Vendors: []VendorFixture{{UserID: "vendor-x", CompanyName: "Far Away Ltd", PortsServed: []string{"Busan"}}},
		RFQs: []RFQFixture{{
			BuyerUserID: "buyer-x",
			Title:       "Paint",
			Port:        "Singapore",
			Items:       []ItemFixture{{Name: "Primer", Quantity: "5", Unit: "liters"}},
			Quotes:      []QuoteFixture{{VendorUserID: "vendor-x", Currency: "USD", UnitPrices: []string{"9.00"}}},
		}},
	}

	summary, err := Run(context.Background(), Config{
		BaseURL:  "http://" + srv.Addr(),
		Identity: idCfg,
	}, fixture, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Code != "VENDOR_PORT_NOT_SERVED" {
		t.Fatalf("api error = %+v", apiErr)
	}
	if summary.Vendors != 1 || summary.RFQs != 1 || summary.Quotes != 0 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunRequiresKeyAndBaseURL(t *testing.T) {
	if _, err := Run(context.Background(), Config{BaseURL: "http://localhost"}, Fixture{}, nil); err == nil {
		t.Fatal("expected missing key error")
	}
	idCfg, err := identity.NewConfig("", "seed-test-signing-key-0123", nil)
	if err != nil {
		t.Fatalf("identity config: %v", err)
	}
	if _, err := Run(context.Background(), Config{Identity: idCfg}, Fixture{}, nil); err == nil {
		t.Fatal("expected missing base url error")
	}
}

func TestLoadFixture(t *testing.T) {
	raw := `{
		"vendors": [{"user_id": "v1", "company_name": "Dock Goods", "ports_served": ["Santos"]}],
		"rfqs": [{
			"buyer_user_id": "b1",
			"title": "Rope",
			"port": "Santos",
			"items": [{"name": "Mooring line", "quantity": "2", "unit": "rolls"}],
			"quotes": [{"vendor_user_id": "v1", "currency": "BRL", "unit_prices": ["310.00"], "accept": true}]
		}]
	}`
	fixture, err := LoadFixture(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	if len(fixture.RFQs) != 1 || !fixture.RFQs[0].Quotes[0].Accept {
		t.Fatalf("fixture = %+v", fixture)
	}

	if _, err := LoadFixture(strings.NewReader(`{"vendor": []}`)); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestFixtureValidate(t *testing.T) {
	item := []ItemFixture{{Name: "Bolt"}}
	tests := []struct {
		name    string
		fixture Fixture
		wantErr string
	}{
		{name: "demo", fixture: DemoFixture()},
		{name: "vendor without user", fixture: Fixture{Vendors: []VendorFixture{{}}}, wantErr: "vendors[0]"},
		{name: "rfq without buyer", fixture: Fixture{RFQs: []RFQFixture{{Items: item}}}, wantErr: "buyer_user_id"},
		{name: "rfq without items", fixture: Fixture{RFQs: []RFQFixture{{BuyerUserID: "b"}}}, wantErr: "at least one item"},
		{
			name: "price count",
			fixture: Fixture{RFQs: []RFQFixture{{
				BuyerUserID: "b",
				Items:       item,
				Quotes:      []QuoteFixture{{VendorUserID: "v", UnitPrices: []string{"1", "2"}}},
			}}},
			wantErr: "2 unit prices for 1 items",
		},
		{
			name: "two accepted",
			fixture: Fixture{RFQs: []RFQFixture{{
				BuyerUserID: "b",
				Items:       item,
				Quotes: []QuoteFixture{
					{VendorUserID: "v1", UnitPrices: []string{"1"}, Accept: true},
					{VendorUserID: "v2", UnitPrices: []string{"1"}, Accept: true},
				},
			}}},
			wantErr: "at most one",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fixture.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfigUsesDiscovery(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaseURL != "http://procurement:8080" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if cfg.GRPCAddr != "procurement:8082" {
		t.Fatalf("grpc addr = %q", cfg.GRPCAddr)
	}
}

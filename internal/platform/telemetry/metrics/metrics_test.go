package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRecord(t *testing.T) {
	t.Parallel()

	m := New()
	m.QuoteSubmitted()
	m.QuoteSubmitted()
	m.QuoteAccepted()
	m.OrderEventAppended("delivered")

	if got := testutil.ToFloat64(m.quotesSubmitted); got != 2 {
		t.Fatalf("quotes submitted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.quotesAccepted); got != 1 {
		t.Fatalf("quotes accepted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.orderEvents.WithLabelValues("delivered")); got != 1 {
		t.Fatalf("order events = %v, want 1", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.QuoteSubmitted()
	m.AcceptConflict()
	m.RelayDead()
	if m.Registry() != nil {
		t.Fatal("expected nil registry")
	}
	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestHandlerExposesMiddlewareCounts(t *testing.T) {
	t.Parallel()

	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := m.Middleware()(mux)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	server := httptest.NewServer(m.Handler())
	defer server.Close()
	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read scrape: %v", err)
	}
	if !strings.Contains(string(body), "portside_http_requests_total") {
		t.Fatalf("expected http request counter in scrape output")
	}
}

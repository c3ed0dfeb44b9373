// Package metrics provides Prometheus collectors for portside services.
//
// A Metrics value owns its own registry so tests and multiple servers in one
// process do not collide on global registration. All recording methods are
// nil-safe, which lets services run without metrics wired.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portside"

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	quotesSubmitted  prometheus.Counter
	quotesWithdrawn  prometheus.Counter
	quotesAccepted   prometheus.Counter
	acceptConflicts  prometheus.Counter
	orderStatusSets  *prometheus.CounterVec
	orderEvents      *prometheus.CounterVec
	vendorCacheReads *prometheus.CounterVec

	relayPublished prometheus.Counter
	relayRetried   prometheus.Counter
	relayDead      prometheus.Counter
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		quotesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_submitted_total",
			Help:      "Quotes created or replaced by vendors.",
		}),
		quotesWithdrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_withdrawn_total",
			Help:      "Quotes withdrawn by vendors.",
		}),
		quotesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_accepted_total",
			Help:      "Quotes accepted, each producing one order.",
		}),
		acceptConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_accept_conflicts_total",
			Help:      "Accept attempts rejected because the RFQ already has an accepted quote or order.",
		}),
		orderStatusSets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_updates_total",
			Help:      "Direct order status updates by target status.",
		}, []string{"status"}),
		orderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_events_total",
			Help:      "Tracking events appended by tracking status.",
		}, []string{"status"}),
		vendorCacheReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_cache_reads_total",
			Help:      "Vendor profile cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		relayPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_relay_published_total",
			Help:      "Outbox events published to the broker.",
		}),
		relayRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_relay_retried_total",
			Help:      "Outbox events scheduled for another attempt.",
		}),
		relayDead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_relay_dead_total",
			Help:      "Outbox events abandoned after the maximum attempts.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.quotesSubmitted,
		m.quotesWithdrawn,
		m.quotesAccepted,
		m.acceptConflicts,
		m.orderStatusSets,
		m.orderEvents,
		m.vendorCacheReads,
		m.relayPublished,
		m.relayRetried,
		m.relayDead,
	)
	return m
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by the matched route pattern.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// QuoteSubmitted counts one quote create or replace.
func (m *Metrics) QuoteSubmitted() {
	if m != nil {
		m.quotesSubmitted.Inc()
	}
}

// QuoteWithdrawn counts one withdrawal.
func (m *Metrics) QuoteWithdrawn() {
	if m != nil {
		m.quotesWithdrawn.Inc()
	}
}

// QuoteAccepted counts one successful acceptance.
func (m *Metrics) QuoteAccepted() {
	if m != nil {
		m.quotesAccepted.Inc()
	}
}

// AcceptConflict counts one rejected acceptance.
func (m *Metrics) AcceptConflict() {
	if m != nil {
		m.acceptConflicts.Inc()
	}
}

// OrderStatusSet counts one direct status update.
func (m *Metrics) OrderStatusSet(status string) {
	if m != nil {
		m.orderStatusSets.WithLabelValues(status).Inc()
	}
}

// OrderEventAppended counts one tracking event.
func (m *Metrics) OrderEventAppended(trackingStatus string) {
	if m != nil {
		m.orderEvents.WithLabelValues(trackingStatus).Inc()
	}
}

// VendorCacheRead counts one cache lookup outcome.
func (m *Metrics) VendorCacheRead(result string) {
	if m != nil {
		m.vendorCacheReads.WithLabelValues(result).Inc()
	}
}

// RelayPublished counts one published outbox event.
func (m *Metrics) RelayPublished() {
	if m != nil {
		m.relayPublished.Inc()
	}
}

// RelayRetried counts one retry scheduling.
func (m *Metrics) RelayRetried() {
	if m != nil {
		m.relayRetried.Inc()
	}
}

// RelayDead counts one abandoned event.
func (m *Metrics) RelayDead() {
	if m != nil {
		m.relayDead.Inc()
	}
}

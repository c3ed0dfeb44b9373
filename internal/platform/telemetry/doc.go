// Package telemetry groups operational observability for portside binaries.
//
// Tracing is configured by platform/otel. Counters and latency histograms are
// exposed in Prometheus format by telemetry/metrics and scraped from the
// /metrics endpoint of each HTTP binary.
package telemetry

// Package metrics provides Prometheus collectors for portside binaries.
//
// # Metric Categories
//
//   - HTTP: request counts and latency by route pattern and status code
//   - Quotes: submissions, withdrawals, acceptances and acceptance conflicts
//   - Orders: status updates and tracking events by status
//   - Vendor cache: reads by hit, miss or error
//   - Outbox relay: published, retried and dead-lettered events
//
// # Integration
//
// Each binary owns one Metrics value and its private registry. Middleware
// must wrap the ServeMux directly so the matched route pattern is visible.
// A nil *Metrics is valid and records nothing, which keeps services usable
// in tests without a registry.
package metrics

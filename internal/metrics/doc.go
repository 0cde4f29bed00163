// Package metrics exposes the observatory's activity as Prometheus metrics.
//
// A Collector listens to the same events as the journal (cycle transitions,
// frames, entry results, health checks) and keeps counters and gauges on
// its own registry, served by Handler at /metrics.
package metrics

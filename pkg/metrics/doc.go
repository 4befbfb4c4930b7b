// Package metrics exposes Grove's Prometheus collectors: completion and XP
// counters, snapshot recompute timings, and sync queue depth/attempt/
// abandonment metrics. Handler serves them over HTTP.
package metrics

// Package prometheus renders authcore metrics for Prometheus scraping.
//
// [NewPrometheusExporter] accepts an [authcore.Engine] and exposes an
// [net/http.Handler] that renders all counters and histograms in Prometheus
// text exposition format. Counter names are prefixed authcore_*_total; the
// single histogram is authcore_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus

// Package prometheus provides Prometheus collectors for mfaflow metrics.
//
// [NewPrometheusExporter] accepts an [mfaflow.Engine] and exposes an [http.Handler]
// that renders all mfaflow counters and histograms in Prometheus text exposition format.
// Counter names are prefixed mfaflow_*_total; the single histogram is
// mfaflow_register_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus

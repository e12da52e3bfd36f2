// Package prometheus provides Prometheus collectors for goAccount metrics.
//
// [NewPrometheusExporter] accepts an [goAccount.Engine] and exposes an [http.Handler]
// that renders all goAccount counters and histograms in Prometheus text exposition
// format. Counter names are prefixed goaccount_*_total; the single histogram is
// goaccount_second_factor_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus

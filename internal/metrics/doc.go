// Package metrics defines the Prometheus collectors exported by alphabot.
//
// Construct one Metrics per registry with MustNewMetrics and share it across
// components. A nil *Metrics disables collection without nil checks at call
// sites.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.MustNewMetrics(reg)
//	mux.Handle("/metrics", metrics.Handler(reg))
package metrics

// Package metrics provides observability hooks for dmbuild.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	env.Metrics = metrics.NoopRecorder{}
//
// To collect metrics, swap in the Prometheus implementation:
//
//	reg := prometheus.NewRegistry()
//	env.Metrics = metrics.NewPrometheusRecorder(reg)
//
// A one-shot CLI run can export the registry with WriteTextfile; long-running
// watch mode can serve it with HTTPHandler.
package metrics

// Package observability provides structured logging, Prometheus metrics,
// health probes and OpenTelemetry wiring.
//
// Logging:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	observability.FromContext(ctx).WithError(err).Error("invite failed")
//
// Metrics implements the recorders of the invitation workflow, so the same
// value is handed to invitations.Store.WithRecorder and
// invitations.Service.WithRecorder:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// Health probes (/health/live, /health/ready) and /metrics are served on the
// separate health port.
package observability

// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown for the flowdeck service.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("project_id", projectID).Info("project created")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ResolutionsTotal.WithLabelValues("project", "user").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	status := checker.Check(ctx)
//
// # Related Packages
//
//   - pkg/config: service configuration
//   - pkg/middleware: request logging and principal extraction
package observability

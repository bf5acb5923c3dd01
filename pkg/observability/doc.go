// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Structured Logging
//
// Create logger:
//
//	logger, err := observability.NewLogger("info", "json", os.Stderr)
//	logger.WithField("run_id", observability.NewRunID()).Info("Pruned schema")
//
// Context-aware logging adds the run ID and the current span:
//
//	ctx = observability.WithLogger(observability.WithRunID(ctx, runID), logger)
//	observability.FromContext(ctx).Warn("Unused root")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveRun(observability.StatusSuccess, time.Since(start))
//	metrics.RecordPrune(observability.PruneStats{RetainedTypes: 12, PrunedTypes: 40})
//	err := observability.WriteFile("metrics.prom", registry)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version, nil)
//	checker.RecordRun(time.Now(), err)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "protoprune",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability

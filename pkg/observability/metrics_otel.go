package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	runsTotal       metric.Int64Counter
	runDuration     metric.Float64Histogram
	typesRetained   metric.Int64Gauge
	typesPruned     metric.Int64Gauge
	membersRetained metric.Int64Gauge
}

// NewOTelMetrics creates instruments from the global meter provider.
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/platinummonkey/protoprune")

	m := &OTelMetrics{}
	var err error

	m.runsTotal, err = meter.Int64Counter(
		"protoprune.runs",
		metric.WithDescription("Total number of prune runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}

	m.runDuration, err = meter.Float64Histogram(
		"protoprune.run.duration",
		metric.WithDescription("Prune run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	m.typesRetained, err = meter.Int64Gauge(
		"protoprune.types.retained",
		metric.WithDescription("Types and services retained by the last run"),
		metric.WithUnit("{type}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retained types gauge: %w", err)
	}

	m.typesPruned, err = meter.Int64Gauge(
		"protoprune.types.pruned",
		metric.WithDescription("Types and services pruned by the last run"),
		metric.WithUnit("{type}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pruned types gauge: %w", err)
	}

	m.membersRetained, err = meter.Int64Gauge(
		"protoprune.members.retained",
		metric.WithDescription("Members marked by the last run"),
		metric.WithUnit("{member}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retained members gauge: %w", err)
	}

	return m, nil
}

// RecordRun records a finished run and, for successful runs, its prune statistics.
func (m *OTelMetrics) RecordRun(ctx context.Context, status string, duration time.Duration, stats PruneStats) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)

	if status != StatusSuccess {
		return
	}
	m.typesRetained.Record(ctx, int64(stats.RetainedTypes))
	m.typesPruned.Record(ctx, int64(stats.PrunedTypes))
	m.membersRetained.Record(ctx, int64(stats.RetainedMembers))
}

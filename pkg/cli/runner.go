package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/protoprune/pkg/config"
	"github.com/platinummonkey/protoprune/pkg/loader"
	"github.com/platinummonkey/protoprune/pkg/observability"
	"github.com/platinummonkey/protoprune/pkg/protoprint"
	"github.com/platinummonkey/protoprune/pkg/prune"
	"github.com/platinummonkey/protoprune/pkg/schema"
)

var tracer = otel.Tracer("protoprune/cli")

// ErrNoModules is returned by Partition when the configuration declares no module.
var ErrNoModules = errors.New("no modules configured")

// Runner loads, prunes and prints schemas as configured.
type Runner struct {
	cfg         *config.Config
	log         logrus.FieldLogger
	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics
	cache       loader.Cache
}

// NewRunner creates a runner. otelMetrics may be nil.
func NewRunner(cfg *config.Config, log logrus.FieldLogger, metrics *observability.Metrics, otelMetrics *observability.OTelMetrics) *Runner {
	return &Runner{
		cfg:         cfg,
		log:         log,
		metrics:     metrics,
		otelMetrics: otelMetrics,
	}
}

// SetCache sets the parse cache shared by every load.
func (r *Runner) SetCache(cache loader.Cache) {
	r.cache = cache
}

// Report is the outcome of one prune.
type Report struct {
	RunID    string
	Loaded   *loader.Result
	Result   *prune.Result
	Stats    observability.PruneStats
	Written  []string
	Duration time.Duration
}

// PartitionReport is the outcome of one partition.
type PartitionReport struct {
	RunID       string
	Loaded      *loader.Result
	Partitioned *prune.PartitionedSchema
	// Written maps module names to the files written for them.
	Written  map[string][]string
	Duration time.Duration
}

// Prune loads the configured sources, prunes them and, unless dryRun, writes the
// retained source files below the output directory.
func (r *Runner) Prune(ctx context.Context, dryRun bool) (*Report, error) {
	report := &Report{RunID: observability.NewRunID()}
	ctx, span, log := r.startRun(ctx, "Prune", report.RunID, dryRun)
	defer span.End()

	start := time.Now()
	err := r.prune(ctx, log, report, dryRun)
	report.Duration = time.Since(start)
	r.finishRun(ctx, span, err, report.Duration, report.Stats)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"retained_types": report.Stats.RetainedTypes,
		"pruned_types":   report.Stats.PrunedTypes,
		"files":          len(report.Written),
		"duration_ms":    report.Duration.Milliseconds(),
	}).Info("Pruned schema")
	return report, nil
}

func (r *Runner) prune(ctx context.Context, log logrus.FieldLogger, report *Report, dryRun bool) error {
	pruningRules, err := r.cfg.PruningRules()
	if err != nil {
		return err
	}
	loaded, err := r.load(ctx)
	if err != nil {
		return err
	}
	report.Loaded = loaded

	result := prune.Prune(loaded.Schema, pruningRules)
	report.Result = result
	warnUnused(log, result.UnusedRoots, result.UnusedPrunes)

	report.Stats = observability.PruneStats{
		RetainedTypes:   countTypes(result.Schema),
		PrunedTypes:     countTypes(loaded.Schema) - countTypes(result.Schema),
		RetainedMembers: len(result.Marks.Members()),
		UnusedRoots:     len(result.UnusedRoots),
		UnusedPrunes:    len(result.UnusedPrunes),
	}
	r.metrics.RecordPrune(report.Stats)

	if dryRun {
		return nil
	}
	written, err := protoprint.NewPrinter(result.Schema).WriteFiles(r.cfg.Path(r.cfg.Out), loaded.IsSource)
	if err != nil {
		return err
	}
	report.Written = written
	return nil
}

// Partition loads the configured sources and prunes them once per module. Unless
// dryRun, each module's files are written below out/<module>.
func (r *Runner) Partition(ctx context.Context, dryRun bool) (*PartitionReport, error) {
	report := &PartitionReport{RunID: observability.NewRunID(), Written: map[string][]string{}}
	ctx, span, log := r.startRun(ctx, "Partition", report.RunID, dryRun)
	defer span.End()

	start := time.Now()
	stats, err := r.partition(ctx, log, report, dryRun)
	report.Duration = time.Since(start)
	r.finishRun(ctx, span, err, report.Duration, stats)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"modules":     len(report.Partitioned.Order),
		"groups":      len(report.Partitioned.Groups()),
		"duration_ms": report.Duration.Milliseconds(),
	}).Info("Partitioned schema")
	return report, nil
}

func (r *Runner) partition(ctx context.Context, log logrus.FieldLogger, report *PartitionReport, dryRun bool) (observability.PruneStats, error) {
	var stats observability.PruneStats
	modules, err := r.cfg.PruneModules()
	if err != nil {
		return stats, err
	}
	if len(modules) == 0 {
		return stats, ErrNoModules
	}
	loaded, err := r.load(ctx)
	if err != nil {
		return stats, err
	}
	report.Loaded = loaded

	partitioned, err := prune.Partition(ctx, loaded.Schema, modules)
	if err != nil {
		return stats, err
	}
	report.Partitioned = partitioned
	for _, warning := range partitioned.Warnings {
		log.Warn(warning)
	}

	serviceOwners := map[schema.ProtoType]string{}
	for _, name := range partitioned.Order {
		module := partitioned.Modules[name]
		warnUnused(log.WithField("module", name), module.UnusedRoots, module.UnusedPrunes)
		stats.RetainedTypes += len(module.Owned)
		stats.UnusedRoots += len(module.UnusedRoots)
		stats.UnusedPrunes += len(module.UnusedPrunes)
		for _, svc := range module.Schema.Services() {
			if _, ok := serviceOwners[svc.Type]; !ok {
				serviceOwners[svc.Type] = name
			}
		}
	}
	stats.PrunedTypes = countTypes(loaded.Schema) - stats.RetainedTypes
	r.metrics.RecordPrune(stats)

	if dryRun {
		return stats, nil
	}
	for _, name := range partitioned.Order {
		module := partitioned.Modules[name]
		include := func(path string) bool {
			return loaded.IsSource(path) && ownsFile(module, module.Schema.ProtoFile(path), serviceOwners)
		}
		written, err := protoprint.NewPrinter(module.Schema).WriteFiles(filepath.Join(r.cfg.Path(r.cfg.Out), name), include)
		if err != nil {
			return stats, fmt.Errorf("module %s: %w", name, err)
		}
		report.Written[name] = written
	}
	return stats, nil
}

// ownsFile reports whether f declares a type or service owned by module.
func ownsFile(module *prune.ModuleResult, f *schema.ProtoFile, serviceOwners map[schema.ProtoType]string) bool {
	if f == nil {
		return false
	}
	for _, t := range f.TypesAndNestedTypes() {
		if module.Owns(t.ProtoType()) {
			return true
		}
	}
	for _, svc := range f.Services {
		if serviceOwners[svc.Type] == module.Name {
			return true
		}
	}
	return false
}

func (r *Runner) load(ctx context.Context) (*loader.Result, error) {
	var sources, protoPath []loader.Root
	for _, dir := range r.cfg.SourceDirs() {
		sources = append(sources, loader.DirRoot(dir))
	}
	for _, dir := range r.cfg.ProtoPathDirs() {
		protoPath = append(protoPath, loader.DirRoot(dir))
	}

	l := loader.NewLoader(sources, protoPath, observability.FromContext(ctx))
	if r.cache != nil {
		l.SetCache(r.cache)
	}
	loaded, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordLoad(len(loaded.SourceFiles), len(loaded.LinkedFiles))
	return loaded, nil
}

func (r *Runner) startRun(ctx context.Context, name, runID string, dryRun bool) (context.Context, trace.Span, logrus.FieldLogger) {
	ctx = observability.WithLogger(observability.WithRunID(ctx, runID), r.log)
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Bool("dry_run", dryRun),
	))
	return ctx, span, observability.FromContext(ctx)
}

func (r *Runner) finishRun(ctx context.Context, span trace.Span, err error, duration time.Duration, stats observability.PruneStats) {
	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusFailure
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
	} else {
		span.SetAttributes(
			attribute.Int("types.retained", stats.RetainedTypes),
			attribute.Int("types.pruned", stats.PrunedTypes),
		)
		span.SetStatus(codes.Ok, "")
	}
	r.metrics.ObserveRun(status, duration)
	if r.otelMetrics != nil {
		r.otelMetrics.RecordRun(ctx, status, duration, stats)
	}
}

func warnUnused(log logrus.FieldLogger, roots, prunes []string) {
	for _, root := range roots {
		log.WithField("rule", root).Warn("Unused root")
	}
	for _, p := range prunes {
		log.WithField("rule", p).Warn("Unused prune")
	}
}

// countTypes counts the messages, enums and services of s.
func countTypes(s *schema.Schema) int {
	n := len(s.Services())
	for _, t := range s.Types() {
		if _, ok := s.GetType(t).(*schema.EnclosingType); !ok {
			n++
		}
	}
	return n
}

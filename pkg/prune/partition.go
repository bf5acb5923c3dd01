package prune

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/protoprune/pkg/graph"
	"github.com/platinummonkey/protoprune/pkg/rules"
	"github.com/platinummonkey/protoprune/pkg/schema"
)

var partitionTracer = otel.Tracer("protoprune/prune/partition")

var (
	// ErrUnknownDependency is returned when a module depends on a module that was not
	// declared.
	ErrUnknownDependency = errors.New("unknown module dependency")
	// ErrDuplicateModule is returned when two modules share a name.
	ErrDuplicateModule = errors.New("duplicate module")
)

// Module is one partition of a schema.
type Module struct {
	Name      string
	DependsOn []string
	Rules     *rules.PruningRules
}

// ModuleResult is the prune of one module.
type ModuleResult struct {
	Name string
	// Schema is the module's pruned schema, including types owned upstream.
	Schema *schema.Schema
	// Owned are the types this module is responsible for, sorted.
	Owned        []schema.ProtoType
	UnusedRoots  []string
	UnusedPrunes []string
}

// Owns reports whether t belongs to this module.
func (m *ModuleResult) Owns(t schema.ProtoType) bool {
	i := sort.Search(len(m.Owned), func(i int) bool {
		return m.Owned[i].String() >= t.String()
	})
	return i < len(m.Owned) && m.Owned[i] == t
}

// PartitionedSchema is the result of Partition.
type PartitionedSchema struct {
	// Order lists module names upstream first.
	Order   []string
	Modules map[string]*ModuleResult
	// Warnings describe types retained by modules that do not depend on each other.
	Warnings []string
	groups   [][]string
}

// Groups returns sets of modules with no dependency path between sets.
func (p *PartitionedSchema) Groups() [][]string {
	return p.groups
}

// Partition prunes s once per module and assigns each retained type to the most
// upstream module that retains it. Module prunes run concurrently.
func Partition(ctx context.Context, s *schema.Schema, modules []Module) (*PartitionedSchema, error) {
	ctx, span := partitionTracer.Start(ctx, "Partition",
		trace.WithAttributes(attribute.Int("modules", len(modules))),
	)
	defer span.End()

	byName := make(map[string]Module, len(modules))
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		if _, ok := byName[m.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModule, m.Name)
		}
		byName[m.Name] = m
		names = append(names, m.Name)
	}
	for _, m := range modules {
		for _, dep := range m.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, m.Name, dep)
			}
		}
	}

	dag := graph.NewDirectedAcyclicGraph(names, func(name string) []string {
		return byName[name].DependsOn
	})
	order, err := dag.TopologicalOrder()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid module graph")
		return nil, err
	}

	results := make([]*Result, len(modules))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range modules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, moduleSpan := partitionTracer.Start(gctx, "PruneModule",
				trace.WithAttributes(attribute.String("module", m.Name)),
			)
			defer moduleSpan.End()
			results[i] = Prune(s, m.Rules)
			moduleSpan.SetAttributes(attribute.Int("types", len(results[i].Marks.Types())))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "partition cancelled")
		return nil, err
	}

	resultsByName := make(map[string]*Result, len(modules))
	for i, m := range modules {
		resultsByName[m.Name] = results[i]
	}

	partitioned := &PartitionedSchema{
		Order:   order,
		Modules: make(map[string]*ModuleResult, len(modules)),
		groups:  dag.DisjointGraphs(),
	}
	owners := map[schema.ProtoType]string{}
	for _, name := range order {
		result := resultsByName[name]
		upstream := map[string]struct{}{}
		for _, dep := range dag.TransitiveClosure(name)[1:] {
			upstream[dep] = struct{}{}
		}

		module := &ModuleResult{
			Name:         name,
			Schema:       result.Schema,
			UnusedRoots:  result.UnusedRoots,
			UnusedPrunes: result.UnusedPrunes,
		}
		for _, t := range result.Schema.Types() {
			if _, ok := result.Schema.GetType(t).(*schema.EnclosingType); ok {
				continue
			}
			owner, owned := owners[t]
			if owned {
				if _, ok := upstream[owner]; !ok {
					partitioned.Warnings = append(partitioned.Warnings, fmt.Sprintf(
						"%s is retained by %s and %s, which do not depend on each other", t, owner, name))
				}
				continue
			}
			owners[t] = name
			module.Owned = append(module.Owned, t)
		}
		sort.Slice(module.Owned, func(i, j int) bool {
			return module.Owned[i].String() < module.Owned[j].String()
		})
		partitioned.Modules[name] = module
	}

	span.SetStatus(codes.Ok, fmt.Sprintf("partitioned %d modules", len(modules)))
	return partitioned, nil
}

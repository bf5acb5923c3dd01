package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/protoprune/pkg/config"
)

// ruleOptions override the configured sources and rules.
type ruleOptions struct {
	sources   []string
	protoPath []string
	roots     []string
	prunes    []string
	since     string
	until     string
	only      string
	out       string
	dryRun    bool
}

func (o *ruleOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVarP(&o.sources, "source", "s", nil, "source root; every .proto file below it is loaded (repeatable)")
	flags.StringArrayVarP(&o.protoPath, "proto-path", "I", nil, "import-only root (repeatable)")
	flags.StringArrayVar(&o.roots, "root", nil, "identifier to retain, such as pkg.Type, pkg.Type#member or pkg.* (repeatable)")
	flags.StringArrayVar(&o.prunes, "prune", nil, "identifier to remove (repeatable)")
	flags.StringVar(&o.since, "since", "", "drop members whose until version is at or before this version")
	flags.StringVar(&o.until, "until", "", "drop members whose since version is after this version")
	flags.StringVar(&o.only, "only", "", "retain members whose version window contains this version")
	flags.StringVarP(&o.out, "out", "o", "", "output directory")
	flags.BoolVar(&o.dryRun, "dry-run", false, "prune without writing files")
}

// apply overrides cfg with every flag set on cmd. Relative flag paths stay relative
// to the working directory.
func (o *ruleOptions) apply(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		changed := cmd.Flags().Changed
		if changed("source") {
			cfg.Sources = absPaths(o.sources)
		}
		if changed("proto-path") {
			cfg.ProtoPath = absPaths(o.protoPath)
		}
		if changed("root") {
			cfg.Roots = o.roots
		}
		if changed("prune") {
			cfg.Prunes = o.prunes
		}
		if changed("since") {
			cfg.Since = o.since
		}
		if changed("until") {
			cfg.Until = o.until
		}
		if changed("only") {
			cfg.Only = o.only
		}
		if changed("out") {
			cfg.Out = absPath(o.out)
		}
	}
}

func newPruneCommand(root *rootOptions) *cobra.Command {
	opts := &ruleOptions{}
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Prune the configured sources and write the retained .proto files",
		Example: `  protoprune prune --config protoprune.yaml
  protoprune prune -s protos -I third_party --root 'squareup.dinosaurs.*' --prune squareup.dinosaurs.Legacy -o build/pruned`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd, root, cmd.Root().Version, opts.apply(cmd))
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.runner().Prune(cmd.Context(), opts.dryRun)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range report.Written {
				fmt.Fprintln(out, path)
			}
			if opts.dryRun {
				fmt.Fprintf(out, "retained %d types, pruned %d\n", report.Stats.RetainedTypes, report.Stats.PrunedTypes)
			}
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

func newPartitionCommand(root *rootOptions) *cobra.Command {
	opts := &ruleOptions{}
	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Prune once per configured module and write each module's files",
		Long: `Partition prunes the schema once per module declared in the configuration.
Each retained type belongs to the most upstream module that retains it, and each
module's files are written to <out>/<module>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd, root, cmd.Root().Version, opts.apply(cmd))
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.runner().Partition(cmd.Context(), opts.dryRun)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range report.Partitioned.Order {
				module := report.Partitioned.Modules[name]
				fmt.Fprintf(out, "%s: %d types\n", name, len(module.Owned))
				for _, path := range report.Written[name] {
					fmt.Fprintf(out, "  %s\n", path)
				}
			}
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

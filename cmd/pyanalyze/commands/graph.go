package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/pyanalyze/internal/config"
	"github.com/Sumatoshi-tech/pyanalyze/internal/depgraph"
	"github.com/Sumatoshi-tech/pyanalyze/internal/obslog"
)

// NewGraphCommand builds the "pyanalyze graph" command: it loads the given
// files (or --root), walks the dependency graph to a steady state, and
// dumps it either as Graphviz or as an interactive go-echarts force graph.
func NewGraphCommand() *cobra.Command {
	var (
		configPath   string
		root         string
		typeshedRoot string
		format       string
		outPath      string
	)

	cmd := &cobra.Command{
		Use:   "graph [paths...]",
		Short: "Dump the module dependency graph",
		Long: `Graph loads Python files under the given paths (or --root), lets the
scheduler resolve their import graph, and writes it out either as a
Graphviz digraph (--format dot) or an interactive HTML force graph
(--format html).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(config.Params{ConfigPath: configPath})
			if err != nil {
				return fmt.Errorf("graph: %w", err)
			}

			log := obslog.New(os.Stderr, obslog.Options{
				Service: "pyanalyze",
				Mode:    obslog.ModeCLI,
				Level:   logLevel(cfg.Logging.Level),
				JSON:    cfg.Logging.Format == "json",
			})

			files, err := resolvePaths(root, args)
			if err != nil {
				return fmt.Errorf("graph: %w", err)
			}

			snap, err := buildGraphSnapshot(cobraCmd.Context(), cfg, root, typeshedRoot, files, log)
			if err != nil {
				return fmt.Errorf("graph: %w", err)
			}

			w, closeW, err := graphOutput(outPath, cobraCmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("graph: %w", err)
			}
			defer closeW()

			return writeGraph(format, snap, w)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a .pyanalyze.yaml config file")
	cmd.Flags().StringVar(&root, "root", ".", "source root imports are resolved against")
	cmd.Flags().StringVar(&typeshedRoot, "typeshed", "", "typeshed stub root for library imports")
	cmd.Flags().StringVar(&format, "format", "dot", "output format: dot or html")
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default stdout)")

	return cmd
}

func buildGraphSnapshot(
	ctx context.Context,
	cfg *config.Config,
	root, typeshedRoot string,
	files []string,
	log *slog.Logger,
) (*depgraph.Snapshot, error) {
	facade, parser := buildFacade(cfg, []string{root}, typeshedRoot, log)
	defer facade.Dispose()

	for i, file := range files {
		module, tree, err := loadModule(parser, root, file)
		if err != nil {
			log.Warn("skipping file", "file", file, "error", err)

			continue
		}

		if i == 0 {
			facade.EnqueueOpened(ctx, module, tree, 1)
		} else {
			facade.Enqueue(ctx, module, tree, 1)
		}
	}

	facade.WaitForComplete(ctx)

	return facade.GraphSnapshot(), nil
}

func graphOutput(outPath string, stdout io.Writer) (io.Writer, func(), error) {
	if outPath == "" {
		return stdout, func() {}, nil
	}

	f, err := os.Create(outPath) //nolint:gosec // destination comes from an explicit CLI flag.
	if err != nil {
		return nil, nil, err
	}

	return f, func() { f.Close() }, nil
}

func writeGraph(format string, snap *depgraph.Snapshot, w io.Writer) error {
	switch format {
	case "html":
		return renderGraphHTML(snap, w)
	default:
		_, err := io.WriteString(w, snap.Serialize())

		return err
	}
}

// renderGraphHTML renders the snapshot as an interactive force-directed
// graph, colored by whether the vertex still has unresolved dependencies.
func renderGraphHTML(snap *depgraph.Snapshot, w io.Writer) error {
	graph := charts.NewGraph()
	graph.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "pyanalyze dependency graph"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "800px"}),
	)

	nodes := make([]opts.GraphNode, 0, len(snap.Vertices))
	links := make([]opts.GraphLink, 0, len(snap.Vertices))

	for _, v := range snap.Vertices {
		category := 0
		if v.HasMissingKeys {
			category = 1
		}

		nodes = append(nodes, opts.GraphNode{
			Name:       v.Key.Name,
			Category:   category,
			SymbolSize: 20,
		})

		for _, dst := range v.Outgoing {
			links = append(links, opts.GraphLink{Source: v.Key.Name, Target: snap.Vertices[dst].Key.Name})
		}
	}

	graph.AddSeries("dependencies", nodes, links,
		charts.WithGraphChartOpts(opts.GraphChart{
			Force:              &opts.GraphForce{Repulsion: 200},
			Roam:               opts.Bool(true),
			FocusNodeAdjacency: opts.Bool(true),
		}),
	)

	if err := graph.Render(w); err != nil {
		return fmt.Errorf("render html graph: %w", err)
	}

	return nil
}

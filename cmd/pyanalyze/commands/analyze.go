package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/pyanalyze/internal/config"
	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
	"github.com/Sumatoshi-tech/pyanalyze/internal/obslog"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

// NewAnalyzeCommand builds the one-shot "pyanalyze analyze" command: it
// discovers Python files under the given paths, drives the facade to
// completion, and prints every module's diagnostics as a table.
func NewAnalyzeCommand() *cobra.Command {
	var (
		configPath   string
		root         string
		typeshedRoot string
	)

	cmd := &cobra.Command{
		Use:   "analyze [paths...]",
		Short: "Analyze Python files and print diagnostics",
		Long: `Analyze discovers Python files under the given paths (or, with no
paths, under --root), runs them through the scheduler to completion, and
prints the resulting lint diagnostics as a table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(config.Params{ConfigPath: configPath})
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			log := obslog.New(os.Stderr, obslog.Options{
				Service: "pyanalyze",
				Mode:    obslog.ModeCLI,
				Level:   logLevel(cfg.Logging.Level),
				JSON:    cfg.Logging.Format == "json",
			})

			files, err := resolvePaths(root, args)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			if len(files) == 0 {
				fmt.Fprintln(cobraCmd.OutOrStdout(), "no Python files found")

				return nil
			}

			return runAnalyze(cobraCmd.Context(), cfg, root, typeshedRoot, files, cobraCmd.OutOrStdout(), log)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a .pyanalyze.yaml config file")
	cmd.Flags().StringVar(&root, "root", ".", "source root imports are resolved against")
	cmd.Flags().StringVar(&typeshedRoot, "typeshed", "", "typeshed stub root for library imports")

	return cmd
}

func runAnalyze(
	ctx context.Context,
	cfg *config.Config,
	root, typeshedRoot string,
	files []string,
	out io.Writer,
	log *slog.Logger,
) error {
	facade, parser := buildFacade(cfg, []string{root}, typeshedRoot, log)
	defer facade.Dispose()

	keys := make([]modkey.Key, 0, len(files))

	for i, file := range files {
		module, tree, err := loadModule(parser, root, file)
		if err != nil {
			log.Warn("skipping file", "file", file, "error", err)

			continue
		}

		keys = append(keys, moduleKeyFor(module))

		if i == 0 {
			facade.EnqueueOpened(ctx, module, tree, 1)
		} else {
			facade.Enqueue(ctx, module, tree, 1)
		}
	}

	facade.WaitForComplete(ctx)

	return renderDiagnostics(ctx, facade, keys, out)
}

func loadModule(parser hostapi.Parser, root, file string) (*pyast.Module, pyast.Tree, error) {
	data, err := os.ReadFile(file) //nolint:gosec // file paths come from CLI args/discovery, not untrusted input.
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", file, err)
	}

	tree, err := parser.Parse(string(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", file, err)
	}

	module := &pyast.Module{
		Name:     moduleNameFor(root, file),
		FilePath: file,
		Type:     pyast.ModuleTypeUser,
	}

	return module, tree, nil
}

func renderDiagnostics(ctx context.Context, facade interface {
	Lint(context.Context, modkey.Key) []hostapi.Diagnostic
}, keys []modkey.Key, out io.Writer,
) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"module", "severity", "line", "message"})

	total := 0

	for _, key := range keys {
		diags := facade.Lint(ctx, key)
		for _, d := range diags {
			total++
			tbl.AppendRow(table.Row{key.Name, severityLabel(d.Severity), d.Line, d.Message})
		}
	}

	tbl.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d diagnostics", total)})
	tbl.Render()

	return nil
}

func severityLabel(sev hostapi.DiagnosticSeverity) string {
	switch sev {
	case hostapi.SeverityError:
		return color.New(color.FgRed).Sprint("error")
	case hostapi.SeverityWarning:
		return color.New(color.FgYellow).Sprint("warning")
	default:
		return color.New(color.FgCyan).Sprint("info")
	}
}

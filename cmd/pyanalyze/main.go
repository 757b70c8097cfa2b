// Package main provides the entry point for the pyanalyze CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/pyanalyze/cmd/pyanalyze/commands"
	"github.com/Sumatoshi-tech/pyanalyze/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pyanalyze",
		Short: "Incremental Python analysis server and CLI",
		Long: `Pyanalyze keeps a dependency graph of a Python codebase and
re-evaluates only the modules a change can affect.

Commands:
  serve     Run the scheduler as an LSP or MCP server
  analyze   Analyze files once and print diagnostics
  graph     Dump the module dependency graph`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewGraphCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "pyanalyze %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

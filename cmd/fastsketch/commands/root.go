// Package commands implements CLI command handlers for fastsketch.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fastsketch/pkg/version"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath      string
	summaryPath     string
	metricsTextfile string
	verbose         bool
	quiet           bool
	logJSON         bool
	noColor         bool
}

// NewRootCommand creates the fastsketch command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "fastsketch",
		Short: "Parallel FracMinHash sketch search and gather",
		Long: `fastsketch compares FracMinHash sketches in parallel.

Commands:
  pairwise         Compare every pair within one collection
  multisearch      Compare two resident collections
  manysearch       Stream a large collection against resident queries
  fastgather       Decompose one query into database matches
  fastmultigather  Run fastgather for many queries against one database`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default: .fastsketch.yaml in CWD or $HOME)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "Only warnings and errors; no summary table")
	pf.BoolVar(&opts.logJSON, "log-json", false, "Log as JSON")
	pf.BoolVar(&opts.noColor, "no-color", false, "Disable colored summary output")
	pf.StringVar(&opts.summaryPath, "summary", "", "Write the run summary as YAML to this path")
	pf.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file at exit")

	root.AddCommand(
		newPairwiseCommand(opts),
		newMultisearchCommand(opts),
		newManysearchCommand(opts),
		newFastgatherCommand(opts),
		newFastmultigatherCommand(opts),
		newVersionCommand(),
	)

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fastsketch %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}

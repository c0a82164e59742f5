package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fastsketch/pkg/search"
)

func newFastmultigatherCommand(root *rootOptions) *cobra.Command {
	var (
		flags     commonFlags
		outputDir string
		identity  string
	)

	cmd := &cobra.Command{
		Use:   "fastmultigather QUERIES AGAINST",
		Short: "Gather many queries against one resident database",
		Long: `Gather many queries against one resident database.

Each query writes <identity>.prefetch.csv and <identity>.gather.csv to the
output directory. The stem identity is the query file name without its
sketch suffix; the hash identity adds a hash of the absolute query path.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, root, &flags)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("identity") {
				s.cfg.Output.Identity = identity
			}

			mode, err := search.ParseIdentityMode(s.cfg.Output.Identity)
			if err != nil {
				return s.finish("fastmultigather", fmt.Errorf("invalid flags: %w", err))
			}

			bp, err := s.thresholdBP()
			if err != nil {
				return s.finish("fastmultigather", err)
			}

			return s.finish("fastmultigather", s.runner.Fastmultigather(cmd.Context(), search.FastmultigatherParams{
				Params:      s.params,
				Queries:     args[0],
				Against:     args[1],
				OutputDir:   outputDir,
				ThresholdBP: bp,
				Identity:    mode,
			}))
		},
	}

	flags.register(cmd)
	flags.registerThresholdBP(cmd)
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for per-query outputs (default: working directory)")
	cmd.Flags().StringVar(&identity, "identity", "stem", "Output identity mode: stem or hash")

	return cmd
}

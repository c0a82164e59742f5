package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fastsketch/pkg/search"
)

func newFastgatherCommand(root *rootOptions) *cobra.Command {
	var (
		flags          commonFlags
		output         string
		outputPrefetch string
	)

	cmd := &cobra.Command{
		Use:   "fastgather QUERY AGAINST",
		Short: "Decompose one query into its best database matches",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, root, &flags)
			if err != nil {
				return err
			}

			bp, err := s.thresholdBP()
			if err != nil {
				return s.finish("fastgather", err)
			}

			return s.finish("fastgather", s.runner.Fastgather(cmd.Context(), search.FastgatherParams{
				Params:         s.params,
				Query:          args[0],
				Against:        args[1],
				Output:         output,
				OutputPrefetch: outputPrefetch,
				ThresholdBP:    bp,
			}))
		},
	}

	flags.register(cmd)
	flags.registerThresholdBP(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Gather output CSV or .sqlite path (default: stdout)")
	cmd.Flags().StringVar(&outputPrefetch, "output-prefetch", "", "Optional prefetch output path")

	return cmd
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fastsketch/pkg/search"
)

func newPairwiseCommand(root *rootOptions) *cobra.Command {
	var (
		flags  commonFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "pairwise SIGLIST",
		Short: "Compare every pair of sketches in one collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, root, &flags)
			if err != nil {
				return err
			}

			return s.finish("pairwise", s.runner.Pairwise(cmd.Context(), search.PairwiseParams{
				Params:    s.params,
				Sketches:  args[0],
				Output:    output,
				Threshold: s.cfg.Search.Threshold,
			}))
		},
	}

	flags.register(cmd)
	flags.registerThreshold(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV or .sqlite path (default: stdout)")

	return cmd
}

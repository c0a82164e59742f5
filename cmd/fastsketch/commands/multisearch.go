package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fastsketch/pkg/search"
)

type searchFunc func(r *search.Runner, ctx context.Context, p search.SearchParams) error

func newMultisearchCommand(root *rootOptions) *cobra.Command {
	return newSearchCommand(root, "multisearch QUERIES AGAINST",
		"Compare every query with every subject, both collections resident",
		"multisearch", (*search.Runner).Multisearch)
}

func newManysearchCommand(root *rootOptions) *cobra.Command {
	return newSearchCommand(root, "manysearch QUERIES AGAINST",
		"Stream a large subject collection against resident queries",
		"manysearch", (*search.Runner).Manysearch)
}

func newSearchCommand(root *rootOptions, use, short, op string, run searchFunc) *cobra.Command {
	var (
		flags  commonFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, root, &flags)
			if err != nil {
				return err
			}

			return s.finish(op, run(s.runner, cmd.Context(), search.SearchParams{
				Params:    s.params,
				Queries:   args[0],
				Against:   args[1],
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

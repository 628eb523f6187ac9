package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newVoteCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <category> <competitor>",
		Short: "Cast one vote for a competitor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withServices(cmd, func(ctx context.Context, rt *services, out io.Writer) error {
				row, err := rt.repository.CastVote(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "%s: %d\n", row.Competitor, row.Votes)
				return err
			})
		},
	}
}

func newResultsCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "results <category>",
		Short: "Print the ranked tallies of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withServices(cmd, func(ctx context.Context, rt *services, out io.Writer) error {
				tallies, err := rt.tallies.GetTallies(ctx, args[0])
				if err != nil {
					return err
				}
				for _, row := range tallies {
					if _, err := fmt.Fprintf(out, "%s\t%d\n", row.Competitor, row.Votes); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newWinnerCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "winner <category>",
		Short: "Print the leading competitor of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withServices(cmd, func(ctx context.Context, rt *services, out io.Writer) error {
				winner, err := rt.tallies.GetWinner(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "%s (%d votes)\n", winner.Competitor, winner.Votes)
				return err
			})
		},
	}
}

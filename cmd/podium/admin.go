package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newMigrateCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the voting schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withServices(cmd, func(_ context.Context, _ *services, out io.Writer) error {
				_, err := fmt.Fprintln(out, "schema up to date")
				return err
			})
		},
	}
}

func newCategoryCommand(app *application) *cobra.Command {
	categoryCmd := &cobra.Command{
		Use:   "category",
		Short: "Manage voting categories",
	}

	categoryCmd.AddCommand(
		&cobra.Command{
			Use:   "add <name>",
			Short: "Create a category",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.withServices(cmd, func(ctx context.Context, rt *services, out io.Writer) error {
					category, err := rt.repository.CreateCategory(ctx, args[0])
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(out, "created category %s\n", category.Name)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "remove <name>",
			Short: "Delete a category with its competitors and votes",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.withServices(cmd, func(ctx context.Context, rt *services, out io.Writer) error {
					if err := rt.repository.DeleteCategory(ctx, args[0]); err != nil {
						return err
					}
					_, err := fmt.Fprintf(out, "removed category %s\n", args[0])
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List categories in creation order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.withServices(cmd, func(ctx context.Context, rt *services, out io.Writer) error {
					categories, err := rt.repository.ListCategories(ctx)
					if err != nil {
						return err
					}
					for _, category := range categories {
						if _, err := fmt.Fprintln(out, category.Name); err != nil {
							return err
						}
					}
					return nil
				})
			},
		},
	)
	return categoryCmd
}

func newCompetitorCommand(app *application) *cobra.Command {
	competitorCmd := &cobra.Command{
		Use:   "competitor",
		Short: "Manage the competitors of a category",
	}

	competitorCmd.AddCommand(
		&cobra.Command{
			Use:   "add <category> <name>",
			Short: "Add a competitor to a category",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.withServices(cmd, func(ctx context.Context, rt *services, out io.Writer) error {
					competitor, err := rt.repository.CreateCompetitor(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(out, "added competitor %s to %s\n", competitor.Name, args[0])
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "remove <category> <name>",
			Short: "Remove a competitor and its votes",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.withServices(cmd, func(ctx context.Context, rt *services, out io.Writer) error {
					if err := rt.repository.DeleteCompetitor(ctx, args[0], args[1]); err != nil {
						return err
					}
					_, err := fmt.Fprintf(out, "removed competitor %s from %s\n", args[1], args[0])
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "list <category>",
			Short: "List the competitors of a category in creation order",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.withServices(cmd, func(ctx context.Context, rt *services, out io.Writer) error {
					competitors, err := rt.repository.ListCompetitors(ctx, args[0])
					if err != nil {
						return err
					}
					for _, competitor := range competitors {
						if _, err := fmt.Fprintln(out, competitor.Name); err != nil {
							return err
						}
					}
					return nil
				})
			},
		},
	)
	return competitorCmd
}

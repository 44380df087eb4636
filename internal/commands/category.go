package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bbledger/internal/core"
)

func newCategoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage categories",
	}
	cmd.AddCommand(newCategoryListCommand(a), newCategoryAddCommand(a), newCategoryRemoveCommand(a))
	return cmd
}

func newCategoryListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := a.categoryService().List(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tICON")
			for _, c := range categories {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Type, c.Icon)
			}
			return w.Flush()
		},
	}
}

func newCategoryAddCommand(a *app) *cobra.Command {
	var typ, icon, color, description string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.categoryService().Add(cmd.Context(), core.Category{
				UserID:      a.userID,
				Name:        args[0],
				Type:        core.CategoryType(typ),
				Icon:        icon,
				Color:       color,
				Description: optional(description),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added category %s (%s)\n", c.Name, c.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", string(core.CategoryExpense), "income, expense or transfer")
	cmd.Flags().StringVar(&icon, "icon", "", "display icon")
	cmd.Flags().StringVar(&color, "color", "", "display colour, e.g. #FF6B6B")
	cmd.Flags().StringVar(&description, "description", "", "free text description")
	return cmd
}

func newCategoryRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a category and detach it from its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detached, err := a.categoryService().Remove(cmd.Context(), a.userID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed category %s, %d transaction(s) now uncategorised\n", args[0], detached)
			return nil
		},
	}
}

package main

import (
	"github.com/spf13/cobra"

	"genelab/internal/analytics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute summary statistics over a dataset",
}

var statsCorrCmd = &cobra.Command{
	Use:   "corr <dataset-id>",
	Short: "Pairwise Pearson correlation of numeric columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		ds, err := a.dataset(ctx, args[0])
		if err != nil {
			return err
		}
		cols, _ := cmd.Flags().GetStringSlice("columns")
		filters, err := parseFilters(cmd)
		if err != nil {
			return err
		}
		res, err := a.query.Correlation(ctx, ds, analytics.StatsRequest{Columns: cols, Filters: filters})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var statsPCACmd = &cobra.Command{
	Use:   "pca <dataset-id>",
	Short: "PCA scores of the standardized numeric columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		ds, err := a.dataset(ctx, args[0])
		if err != nil {
			return err
		}
		cols, _ := cmd.Flags().GetStringSlice("columns")
		n, _ := cmd.Flags().GetInt("components")
		filters, err := parseFilters(cmd)
		if err != nil {
			return err
		}
		res, err := a.query.PCAScores(ctx, ds, analytics.StatsRequest{Columns: cols, NComponents: n, Filters: filters})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	statsCorrCmd.Flags().StringSlice("columns", nil, "numeric columns to include (default: all)")
	statsCorrCmd.Flags().String("filters", "", "filter JSON applied before computing")
	statsPCACmd.Flags().StringSlice("columns", nil, "numeric columns to include (default: auto)")
	statsPCACmd.Flags().Int("components", 0, "requested components (clamped)")
	statsPCACmd.Flags().String("filters", "", "filter JSON applied before computing")

	statsCmd.AddCommand(statsCorrCmd, statsPCACmd)
	rootCmd.AddCommand(statsCmd)
}

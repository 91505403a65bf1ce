package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"genelab/pkg/domain"
)

var chartCmd = &cobra.Command{
	Use:   "chart <dataset-id>",
	Short: "Answer an interactive chart query",
	Long: `Chart computes the data series for one chart over the dataset's canonical
matrix: hist (binned counts), bar (category aggregation), line (mean per axis
value), or scatter (sampled point cloud).`,
	Args: cobra.ExactArgs(1),
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

		kind, _ := cmd.Flags().GetString("kind")
		x, _ := cmd.Flags().GetString("x")
		y, _ := cmd.Flags().GetString("y")
		bins, _ := cmd.Flags().GetInt("bins")
		agg, _ := cmd.Flags().GetString("agg")
		sample, _ := cmd.Flags().GetInt("sample")
		filters, err := parseFilters(cmd)
		if err != nil {
			return err
		}

		req := domain.ChartRequest{
			Kind:    domain.ChartKind(kind),
			X:       x,
			Y:       y,
			Bins:    bins,
			Agg:     domain.AggKind(agg),
			Filters: filters,
			Sample:  sample,
		}
		res, err := a.query.Chart(ctx, ds, req)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

// parseFilters decodes the --filters flag, a JSON array of
// {column, op, value} objects.
func parseFilters(cmd *cobra.Command) ([]domain.Filter, error) {
	raw, _ := cmd.Flags().GetString("filters")
	if raw == "" {
		return nil, nil
	}
	var filters []domain.Filter
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil, fmt.Errorf("parse filters: %w", err)
	}
	return filters, nil
}

func init() {
	chartCmd.Flags().String("kind", "hist", "chart kind (hist|bar|line|scatter)")
	chartCmd.Flags().String("x", "", "x column")
	chartCmd.Flags().String("y", "", "y column (bar value, line value, scatter y)")
	chartCmd.Flags().Int("bins", 0, "histogram bins (clamped to 5..50, default 20)")
	chartCmd.Flags().String("agg", "", "bar aggregation (sum|mean|count)")
	chartCmd.Flags().Int("sample", 0, "row sample size before computing")
	chartCmd.Flags().String("filters", "", `filter JSON, e.g. '[{"column":"s1","op":">","value":2}]'`)
	rootCmd.AddCommand(chartCmd)
}

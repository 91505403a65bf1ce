package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"genelab/internal/canonical"
	"genelab/pkg/domain"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage dataset records",
}

var datasetAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Ingest a tabular file: canonicalize it and register a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		input := args[0]
		title, _ := cmd.Flags().GetString("title")
		owner, _ := cmd.Flags().GetString("owner")
		if title == "" {
			title = filepath.Base(input)
		}

		st, err := os.Stat(input)
		if err != nil {
			return err
		}

		id := uuid.NewString()
		destDir := filepath.Join(viper.GetString("data_dir"), "datasets", id)
		res, err := canonical.Canonicalize(input, destDir)
		if err != nil {
			return fmt.Errorf("canonicalize %s: %w", input, err)
		}

		now := nowUTC()
		ds := domain.Dataset{
			ID:               id,
			OwnerID:          owner,
			Title:            title,
			StoragePath:      res.Path,
			OriginalFilename: filepath.Base(input),
			FileSizeBytes:    st.Size(),
			NRows:            res.NRows,
			NCols:            res.NCols,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := a.datasets.PutDataset(ctx, ds); err != nil {
			return err
		}
		a.log.Info("dataset ingested", "dataset_id", id, "rows", res.NRows, "cols", res.NCols)
		return printJSON(ds)
	},
}

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dataset records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		owner, _ := cmd.Flags().GetString("owner")
		out, err := a.datasets.ListDatasets(ctx, owner)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var datasetPreviewCmd = &cobra.Command{
	Use:   "preview <dataset-id>",
	Short: "Print the first rows of the canonical matrix",
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
		rows, _ := cmd.Flags().GetInt("rows")
		res, err := a.query.Preview(ctx, ds, rows)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var datasetSchemaCmd = &cobra.Command{
	Use:   "schema <dataset-id>",
	Short: "Infer per-column dtypes and roles",
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
		schema, err := a.query.Schema(ctx, ds)
		if err != nil {
			return err
		}
		return printJSON(schema)
	},
}

func init() {
	datasetAddCmd.Flags().String("title", "", "dataset title (default: file name)")
	datasetAddCmd.Flags().String("owner", "", "owner identifier")
	datasetListCmd.Flags().String("owner", "", "filter by owner identifier")
	datasetPreviewCmd.Flags().Int("rows", 0, "rows to return (default 50, max 200)")

	datasetCmd.AddCommand(datasetAddCmd, datasetListCmd, datasetPreviewCmd, datasetSchemaCmd)
	rootCmd.AddCommand(datasetCmd)
}

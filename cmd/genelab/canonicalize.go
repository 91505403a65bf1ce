package main

import (
	"github.com/spf13/cobra"

	"genelab/internal/canonical"
)

var canonicalizeCmd = &cobra.Command{
	Use:   "canonicalize <file>",
	Short: "Convert a tabular file to the canonical numeric matrix",
	Long: `Canonicalize reads a tabular file, pivots long-layout expression triples
into a wide gene-by-sample matrix when the layout matches, coerces values to
numeric, and writes the result (parquet when possible, CSV otherwise) without
registering a dataset record.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		res, err := canonical.Canonicalize(args[0], out)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	canonicalizeCmd.Flags().String("out", ".", "destination directory")
	rootCmd.AddCommand(canonicalizeCmd)
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"genelab/internal/recipe"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit and inspect recipe runs",
}

var runSubmitCmd = &cobra.Command{
	Use:   "submit <dataset-id> <recipe>",
	Short: "Execute a recipe against a dataset",
	Long: `Submit creates a run record and executes the recipe inline. Execution
failures are recorded on the run rather than returned; inspect the printed
status and error_message. A repeat submission with identical parameters
against an unchanged dataset is served from the previous run's artifacts and
flagged cache_hit.`,
	Args: cobra.ExactArgs(2),
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

		var params map[string]any
		if raw, _ := cmd.Flags().GetString("params"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &params); err != nil {
				return fmt.Errorf("parse params: %w", err)
			}
		}
		owner, _ := cmd.Flags().GetString("owner")

		run, err := a.engine.Submit(ctx, ds, owner, args[1], params)
		if err != nil {
			return err
		}
		return printJSON(run)
	},
}

var runListCmd = &cobra.Command{
	Use:   "list <dataset-id>",
	Short: "List runs for a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		out, err := a.runs.ListRuns(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var runGetCmd = &cobra.Command{
	Use:   "get <run-id>",
	Short: "Show one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		run, err := a.runs.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(run)
	},
}

var runCancelCmd = &cobra.Command{
	Use:   "cancel <run-id>",
	Short: "Cancel a queued or running run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		run, err := a.engine.Cancel(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(run)
	},
}

var runRecipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "List available recipes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(recipe.Templates())
	},
}

func init() {
	runSubmitCmd.Flags().String("params", "", `recipe params JSON, e.g. '{"method":"pearson"}'`)
	runSubmitCmd.Flags().String("owner", "", "owner identifier recorded on the run")

	runCmd.AddCommand(runSubmitCmd, runListCmd, runGetCmd, runCancelCmd, runRecipesCmd)
	rootCmd.AddCommand(runCmd)
}

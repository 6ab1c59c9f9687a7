package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/finkg/am"
	"github.com/teranos/finkg/cmd/finkg/commands"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "finkg",
	Short: "finkg - Financial knowledge graph with grounded reasoning",
	Long: `finkg - Financial knowledge graph with grounded reasoning.

finkg keeps clients, accounts, transactions and compliance rules in an
in-memory knowledge graph, turns fixed queries over it into plain-text facts,
and asks a language model to reason over those facts only.

Available commands:
  am       - Manage finkg configuration ("I am")
  ingest   - Load delimited files into the graph
  facts    - Print grounding facts without calling a model
  scenario - Run a reasoning workflow
  graph    - Dump, count or export the graph
  log      - Inspect the JSONL trace log
  usage    - Show model usage statistics
  version  - Show build information

Examples:
  finkg am show                             # Show current configuration
  finkg scenario summary --client-id A      # Summarize client A's transactions
  finkg scenario evaluate --tx-id T002      # Score a compliance decision
  finkg facts context A T002                # Print the facts the model would see
  finkg log summary --log-file runs.jsonl   # Count traced runs per scenario`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := am.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")

		if err := logger.Initialize(logger.Options{
			JSON:      jsonLogs || cfg.Log.JSON,
			Verbosity: verbosity,
			File:      cfg.Log.File,
		}); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON on stderr")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.IngestCmd)
	rootCmd.AddCommand(commands.FactsCmd)
	rootCmd.AddCommand(commands.ScenarioCmd)
	rootCmd.AddCommand(commands.GraphCmd)
	rootCmd.AddCommand(commands.LogCmd)
	rootCmd.AddCommand(commands.UsageCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/finkg/am"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/retriever"
)

// FactsCmd prints grounding facts without calling a model
var FactsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Print grounding facts without calling a model",
	Long: `Print the exact fact text a reasoning workflow would send to the model.

Examples:
  finkg facts client A                 # Client A's transactions
  finkg facts client A --compliance    # ... with each compliance flag
  finkg facts tx T002                  # Rules T002 complies with or violates
  finkg facts context A T002           # Both, with headers`,
}

var factsClientCmd = &cobra.Command{
	Use:   "client <client-id>",
	Short: "Print a client's transaction facts",
	Args:  cobra.ExactArgs(1),
	RunE:  runFactsClient,
}

var factsTxCmd = &cobra.Command{
	Use:   "tx <tx-id>",
	Short: "Print a transaction's compliance facts",
	Args:  cobra.ExactArgs(1),
	RunE:  runFactsTx,
}

var factsContextCmd = &cobra.Command{
	Use:   "context <client-id> [tx-id]",
	Short: "Print the combined context used for free questions",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runFactsContext,
}

var (
	factsData       dataFlags
	factsCompliance bool
)

func init() {
	factsData.register(FactsCmd)
	factsClientCmd.Flags().BoolVar(&factsCompliance, "compliance", false, "Append each transaction's compliance flag")

	FactsCmd.AddCommand(factsClientCmd)
	FactsCmd.AddCommand(factsTxCmd)
	FactsCmd.AddCommand(factsContextCmd)
}

// factsRetriever builds the graph from the data flags and wraps it for formatting
func factsRetriever(cmd *cobra.Command) (*retriever.Retriever, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	store, err := factsData.buildStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	return retriever.New(store), nil
}

func runFactsClient(cmd *cobra.Command, args []string) error {
	r, err := factsRetriever(cmd)
	if err != nil {
		return err
	}
	var opts []retriever.FactOption
	if factsCompliance {
		opts = append(opts, retriever.WithComplianceFlag())
	}
	fmt.Fprintln(cmd.OutOrStdout(), r.ClientFactsText(args[0], opts...))
	return nil
}

func runFactsTx(cmd *cobra.Command, args []string) error {
	r, err := factsRetriever(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), r.ComplianceFactsText(args[0]))
	return nil
}

func runFactsContext(cmd *cobra.Command, args []string) error {
	r, err := factsRetriever(cmd)
	if err != nil {
		return err
	}
	txID := ""
	if len(args) == 2 {
		txID = args[1]
	}
	fmt.Fprintln(cmd.OutOrStdout(), r.BuildContext(args[0], txID))
	return nil
}

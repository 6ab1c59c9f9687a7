package commands

import (
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/finkg/am"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/graph"
	"github.com/teranos/finkg/kg"
	"github.com/teranos/finkg/logger"
)

// GraphCmd dumps, counts and exports the graph
var GraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Dump, count or export the graph",
	Long: `Work with the assembled graph as a whole.

Examples:
  finkg graph dump --out kg.nt                  # N-Triples, reloadable with --graph
  finkg graph stats                             # Node and edge counts
  finkg graph export --out graph.json           # Node-link JSON for D3
  finkg graph export --query 'tx T002'          # Only T002 and what it touches
  finkg graph export --query 'client "Acme Co"' # Quote ids containing spaces`,
}

var graphDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write every triple as N-Triples",
	RunE:  runGraphDump,
}

var graphStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count nodes, rule relations and triples",
	RunE:  runGraphStats,
}

var graphExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export node-link JSON for visualization",
	RunE:  runGraphExport,
}

var (
	graphData  dataFlags
	graphOut   string
	graphQuery string
)

func init() {
	graphData.register(GraphCmd)
	GraphCmd.PersistentFlags().StringVarP(&graphOut, "out", "o", "", "Write to this file instead of stdout")
	graphExportCmd.Flags().StringVarP(&graphQuery, "query", "q", "", "Focus on <kind> <id> pairs (client, account, tx, rule)")

	GraphCmd.AddCommand(graphDumpCmd)
	GraphCmd.AddCommand(graphStatsCmd)
	GraphCmd.AddCommand(graphExportCmd)
}

func graphStore(cmd *cobra.Command) (*kg.Store, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return graphData.buildStore(cmd.Context(), cfg)
}

// withOutput runs fn against --out when set, stdout otherwise
func withOutput(cmd *cobra.Command, fn func(io.Writer) error) error {
	if graphOut == "" {
		return fn(cmd.OutOrStdout())
	}
	if graphOut == graphData.graphPath {
		return errors.NewInvalidRequestError("--out would overwrite the --graph input %s", graphOut)
	}

	f, err := os.Create(graphOut)
	if err != nil {
		return errors.Wrapf(err, "create %s", graphOut)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", graphOut)
	}
	pterm.Success.Printf("Wrote %s\n", graphOut)
	return nil
}

func runGraphDump(cmd *cobra.Command, args []string) error {
	store, err := graphStore(cmd)
	if err != nil {
		return err
	}
	return withOutput(cmd, store.Dump)
}

func runGraphStats(cmd *cobra.Command, args []string) error {
	store, err := graphStore(cmd)
	if err != nil {
		return err
	}
	st := store.Stats()
	data := pterm.TableData{
		{"Kind", "Count"},
		{"Clients", strconv.Itoa(st.Clients)},
		{"Accounts", strconv.Itoa(st.Accounts)},
		{"Transactions", strconv.Itoa(st.Transactions)},
		{"Rules", strconv.Itoa(st.Rules)},
		{"Rule relations", strconv.Itoa(st.RuleRelations)},
		{"Triples", strconv.Itoa(st.Triples)},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(cmd.OutOrStdout()).Render()
}

func runGraphExport(cmd *cobra.Command, args []string) error {
	store, err := graphStore(cmd)
	if err != nil {
		return err
	}

	g, err := graph.NewBuilder(store, logger.Logger).BuildFromQuery(cmd.Context(), graphQuery)
	if err != nil {
		return err
	}

	return withOutput(cmd, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(g), "encode graph")
	})
}

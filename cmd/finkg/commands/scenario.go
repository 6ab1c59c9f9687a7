package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/finkg/am"
	"github.com/teranos/finkg/controller"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/ingest"
	"github.com/teranos/finkg/logger"
)

// ScenarioCmd runs the reasoning workflows
var ScenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run a reasoning workflow",
	Long: `Run one reasoning workflow over the graph.

Every run is appended to the trace log when --log-file or trace.path is set.
raw-facts needs no model; the others need OPENROUTER_API_KEY, OPENAI_API_KEY
or ANTHROPIC_API_KEY (see reasoning.provider).

Examples:
  finkg scenario summary                            # Summarize client A
  finkg scenario compliance --tx-id T002            # Explain T002's compliance
  finkg scenario raw-facts --client-id A            # Facts only, no model call
  finkg scenario evaluate --tx-id T001 --format json
  finkg scenario ask --question "Which transaction is risky?" --tx-id T002`,
}

var scenarioSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize a client's transactions and flag risky ones",
	RunE:  runScenarioSummary,
}

var scenarioComplianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Explain whether a transaction is compliant",
	RunE:  runScenarioCompliance,
}

var scenarioRawFactsCmd = &cobra.Command{
	Use:   "raw-facts",
	Short: "Print a client's facts with compliance flags, without a model call",
	RunE:  runScenarioRawFacts,
}

var scenarioEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the model's compliance decision against the graph label",
	RunE:  runScenarioEvaluate,
}

var scenarioAskCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a free question with a structured, fact-cited answer",
	RunE:  runScenarioAsk,
}

var (
	scenarioData     dataFlags
	scenarioClientID string
	scenarioTxID     string
	scenarioQuestion string
	scenarioLogFile  string
	scenarioFormat   string
)

func init() {
	scenarioData.register(ScenarioCmd)
	flags := ScenarioCmd.PersistentFlags()
	flags.StringVar(&scenarioClientID, "client-id", ingest.SeedClientID, "Client to reason about")
	flags.StringVar(&scenarioTxID, "tx-id", ingest.SeedTxID, "Transaction to reason about")
	flags.StringVar(&scenarioQuestion, "question", "", "Question to ask instead of the workflow's default")
	flags.StringVar(&scenarioLogFile, "log-file", "", "Append a JSONL trace record per run (default trace.path)")

	scenarioEvaluateCmd.Flags().StringVar(&scenarioFormat, "format", formatYAML, "Output format: yaml, json")

	ScenarioCmd.AddCommand(scenarioSummaryCmd)
	ScenarioCmd.AddCommand(scenarioComplianceCmd)
	ScenarioCmd.AddCommand(scenarioRawFactsCmd)
	ScenarioCmd.AddCommand(scenarioEvaluateCmd)
	ScenarioCmd.AddCommand(scenarioAskCmd)
}

// newController wires the graph, trace log and, when withModel is set, the
// configured chat client. The returned close func is never nil.
func newController(cmd *cobra.Command, withModel bool) (*controller.Controller, func(), error) {
	noop := func() {}
	cfg, err := am.Load()
	if err != nil {
		return nil, noop, errors.Wrap(err, "failed to load config")
	}

	store, err := scenarioData.buildStore(cmd.Context(), cfg)
	if err != nil {
		return nil, noop, err
	}

	opts := []controller.Option{controller.WithLogger(logger.Logger)}
	tr, err := openTrace(scenarioLogFile, cfg)
	if err != nil {
		return nil, noop, err
	}
	if tr != nil {
		opts = append(opts, controller.WithTrace(tr))
	}

	if !withModel {
		return controller.New(store, nil, opts...), noop, nil
	}

	r, closeFn, err := newReasoner(cfg)
	if err != nil {
		return nil, noop, err
	}
	return controller.New(store, r, opts...), closeFn, nil
}

func runScenarioSummary(cmd *cobra.Command, args []string) error {
	c, closeFn, err := newController(cmd, true)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := c.SummarizeClient(cmd.Context(), scenarioClientID, scenarioQuestion)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func runScenarioCompliance(cmd *cobra.Command, args []string) error {
	c, closeFn, err := newController(cmd, true)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := c.ExplainCompliance(cmd.Context(), scenarioTxID, scenarioQuestion)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func runScenarioRawFacts(cmd *cobra.Command, args []string) error {
	c, closeFn, err := newController(cmd, false)
	if err != nil {
		return err
	}
	defer closeFn()

	printResult(cmd.OutOrStdout(), c.RawFacts(cmd.Context(), scenarioClientID, true))
	return nil
}

func runScenarioEvaluate(cmd *cobra.Command, args []string) error {
	if scenarioFormat != formatYAML && scenarioFormat != formatJSON {
		return errors.NewInvalidRequestError("unsupported format: %s (supported: yaml, json)", scenarioFormat)
	}

	c, closeFn, err := newController(cmd, true)
	if err != nil {
		return err
	}
	defer closeFn()

	eval, err := c.EvaluateCompliance(cmd.Context(), scenarioTxID)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), scenarioFormat, "", eval)
}

func runScenarioAsk(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(scenarioQuestion) == "" {
		return errors.WithHint(errors.NewInvalidRequestError("ask needs a question"), `pass --question "..."`)
	}

	c, closeFn, err := newController(cmd, true)
	if err != nil {
		return err
	}
	defer closeFn()

	ans, err := c.AnswerQuestion(cmd.Context(), scenarioClientID, scenarioTxID, scenarioQuestion)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printResult(out, &ans.Result)
	if a := ans.Answer; a != nil {
		fmt.Fprintf(out, "%s %s\n", pterm.LightCyan("Uncertainty:"), a.Uncertainty)
		if a.Reasoning != "" {
			fmt.Fprintf(out, "%s %s\n", pterm.LightCyan("Reasoning:"), a.Reasoning)
		}
		for _, f := range a.UsedFacts {
			fmt.Fprintf(out, "  %s %s\n", pterm.Gray("cites"), f)
		}
		if a.InsufficientFacts {
			fmt.Fprintln(out, pterm.Yellow("The facts were not sufficient for a confident answer."))
		}
	}
	return nil
}

func printResult(w io.Writer, res *controller.Result) {
	fmt.Fprintf(w, "%s %s %s\n", pterm.LightCyan("Scenario:"), res.Scenario, pterm.Gray("(trace "+res.TraceID+")"))
	if res.Question != "" {
		fmt.Fprintf(w, "%s %s\n", pterm.LightCyan("Question:"), res.Question)
	}
	fmt.Fprintf(w, "%s\n%s\n", pterm.LightCyan("Facts:"), res.Facts)
	if res.Response != "" {
		fmt.Fprintf(w, "%s\n%s\n", pterm.LightCyan("Response:"), res.Response)
	}
}

package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/finkg/am"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/trace"
)

// LogCmd inspects the trace log
var LogCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect the JSONL trace log",
	Long: `Inspect the trace log written by scenario runs.

Malformed lines are skipped and counted, never fatal.

Examples:
  finkg log last --log-file runs.jsonl                    # Most recent run
  finkg log last --scenario evaluate --log-file runs.jsonl
  finkg log summary --log-file runs.jsonl                 # Runs per scenario`,
}

var logLastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the most recent trace record",
	RunE:  runLogLast,
}

var logSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count trace records per scenario",
	RunE:  runLogSummary,
}

var (
	logFile     string
	logScenario string
	logFormat   string
)

func init() {
	LogCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Trace log to read (default trace.path)")
	LogCmd.PersistentFlags().StringVar(&logFormat, "format", formatText, "Output format: text, json, yaml")
	logLastCmd.Flags().StringVar(&logScenario, "scenario", "", "Only consider this scenario")

	LogCmd.AddCommand(logLastCmd)
	LogCmd.AddCommand(logSummaryCmd)
}

func loadTrace() ([]trace.Record, int, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to load config")
	}
	path := orDefault(logFile, cfg.Trace.Path)
	if path == "" {
		return nil, 0, errors.WithHint(errors.NewInvalidRequestError("no trace log given"),
			"pass --log-file or set trace.path")
	}
	return trace.Load(path)
}

func runLogLast(cmd *cobra.Command, args []string) error {
	records, skipped, err := loadTrace()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	rec := trace.Last(records, logScenario)
	if rec == nil {
		if logScenario != "" {
			fmt.Fprintf(out, "No runs recorded for scenario %q.\n", logScenario)
		} else {
			fmt.Fprintln(out, "No runs recorded.")
		}
		return nil
	}
	if logFormat != formatText {
		return render(out, logFormat, "", rec)
	}

	printRecord(out, rec)
	if skipped > 0 {
		fmt.Fprintln(out, pterm.Yellow(fmt.Sprintf("%d malformed lines skipped", skipped)))
	}
	return nil
}

func printRecord(w io.Writer, rec *trace.Record) {
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "%s %s\n", pterm.LightCyan(name+":"), value)
		}
	}
	field("ID", rec.ID)
	field("Time", formatTime(rec.Timestamp))
	field("Scenario", rec.Scenario)
	field("Client", rec.ClientID)
	field("Transaction", rec.TxID)
	field("Question", rec.Question)
	fmt.Fprintf(w, "%s\n%s\n", pterm.LightCyan("Facts:"), rec.Facts)
	if rec.Response != "" {
		fmt.Fprintf(w, "%s\n%s\n", pterm.LightCyan("Response:"), rec.Response)
	}
	if rec.Error != "" {
		fmt.Fprintf(w, "%s %s\n", pterm.Red("Error:"), rec.Error)
	}
}

func runLogSummary(cmd *cobra.Command, args []string) error {
	records, skipped, err := loadTrace()
	if err != nil {
		return err
	}
	summary := trace.Summarize(records)
	summary.Skipped = skipped

	out := cmd.OutOrStdout()
	if logFormat != formatText {
		return render(out, logFormat, "", summary)
	}

	data := pterm.TableData{{"Scenario", "Runs"}}
	for _, name := range summary.Scenarios() {
		data = append(data, []string{name, strconv.Itoa(summary.PerScenario[name])})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(out).Render(); err != nil {
		return errors.Wrap(err, "render summary table")
	}

	fmt.Fprintf(out, "Total: %d", summary.TotalEntries)
	if summary.Skipped > 0 {
		fmt.Fprintf(out, " (%d malformed lines skipped)", summary.Skipped)
	}
	fmt.Fprintln(out)
	if summary.FirstTimestamp != nil {
		fmt.Fprintf(out, "From %s to %s\n", formatTime(*summary.FirstTimestamp), formatTime(*summary.LastTimestamp))
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}

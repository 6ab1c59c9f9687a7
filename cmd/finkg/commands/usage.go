package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/finkg/ai/tracker"
	"github.com/teranos/finkg/am"
	"github.com/teranos/finkg/db"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/logger"
)

// UsageCmd reports model usage recorded in the database
var UsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show model usage statistics",
	Long: `Show model calls recorded when database.track_usage is enabled.

Examples:
  finkg usage stats               # Last 24 hours
  finkg usage stats --since 168h  # Last week`,
}

var usageStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize requests, tokens and cost per model",
	RunE:  runUsageStats,
}

// usageReport is the machine-readable form of usage stats
type usageReport struct {
	Since  time.Time                `json:"since" yaml:"since"`
	Totals *tracker.UsageStats      `json:"totals" yaml:"totals"`
	Models []tracker.ModelBreakdown `json:"models" yaml:"models"`
}

var (
	usageSince  time.Duration
	usageFormat string
)

func init() {
	usageStatsCmd.Flags().DurationVar(&usageSince, "since", 24*time.Hour, "How far back to look")
	usageStatsCmd.Flags().StringVar(&usageFormat, "format", formatText, "Output format: text, json, yaml")

	UsageCmd.AddCommand(usageStatsCmd)
}

func runUsageStats(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if cfg.Database.Path == "" {
		return errors.WithHint(errors.NewInvalidRequestError("no usage database configured"), "set database.path")
	}

	conn, err := db.OpenWithMigrations(cfg.Database.Path, logger.Named("db"))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := cmd.Context()
	t := tracker.NewUsageTracker(conn)
	since := time.Now().Add(-usageSince)

	report := usageReport{Since: since.UTC()}
	if report.Totals, err = t.GetUsageStats(ctx, since); err != nil {
		return err
	}
	if report.Models, err = t.GetModelBreakdown(ctx, since); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if usageFormat != formatText {
		return render(out, usageFormat, "", report)
	}

	s := report.Totals
	fmt.Fprintf(out, "Since %s\n", report.Since.Format(time.RFC3339))
	fmt.Fprintf(out, "Requests: %d (%.0f%% successful)  Tokens: %d  Cost: $%.4f  Models: %d\n",
		s.TotalRequests, s.SuccessRate*100, s.TotalTokens, s.TotalCost, s.UniqueModels)
	if len(report.Models) == 0 {
		if !cfg.Database.TrackUsage {
			pterm.Info.Println("Usage tracking is off; set database.track_usage = true to record calls")
		}
		return nil
	}

	data := pterm.TableData{{"Model", "Provider", "Requests", "Tokens", "Cost", "Avg ms"}}
	for _, m := range report.Models {
		avg := "-"
		if m.AvgResponseTimeMs != nil {
			avg = strconv.FormatFloat(*m.AvgResponseTimeMs, 'f', 0, 64)
		}
		data = append(data, []string{
			m.ModelName,
			m.ModelProvider,
			strconv.Itoa(m.RequestCount),
			strconv.Itoa(m.TotalTokens),
			fmt.Sprintf("$%.4f", m.TotalCost),
			avg,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(out).Render()
}

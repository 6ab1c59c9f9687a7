package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/finkg/am"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/ingest"
	"github.com/teranos/finkg/kg"
	"github.com/teranos/finkg/logger"
)

// IngestCmd loads delimited files into the graph
var IngestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Load delimited files into the graph",
	Long: `Load clients.csv, accounts.csv, transactions.csv, rules.csv and
tx_rules.csv from a directory into the graph.

Missing files are skipped. Rows with problems are repaired with defaults or
skipped and reported as warnings; they never abort the load.

With --dump the resulting graph is written as N-Triples, which other commands
accept through --graph. With --watch the directory is re-ingested whenever one
of the files changes, rewriting the dump each time.

Examples:
  finkg ingest ./data                          # Load and report
  finkg ingest ./data --no-seed --dump kg.nt   # Write a dump of the files alone
  finkg ingest ./data --watch --dump kg.nt     # Keep the dump current`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var (
	ingestDumpPath string
	ingestWatch    bool
	ingestNoSeed   bool
)

func init() {
	IngestCmd.Flags().StringVar(&ingestDumpPath, "dump", "", "Write the graph as N-Triples to this file")
	IngestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "Re-ingest when a data file changes")
	IngestCmd.Flags().BoolVar(&ingestNoSeed, "no-seed", false, "Do not load the built-in demo data first")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	dir := cfg.Ingest.DataDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return errors.WithHint(errors.NewInvalidRequestError("no data directory given"),
			"pass a directory or set ingest.data_dir")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := kg.NewStore(kg.WithBaseIRI(cfg.Graph.BaseIRI), kg.WithLogger(logger.Named("kg")))
	if !ingestNoSeed {
		ingest.Seed(store)
	}

	loader := newLoader(store, cfg)
	res, err := loader.LoadDir(ctx, dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printIngestResult(out, res); err != nil {
		return err
	}
	if err := writeDump(store, ingestDumpPath); err != nil {
		return err
	}

	if !ingestWatch {
		return nil
	}

	debounce := time.Duration(cfg.Ingest.WatchDebounceMS) * time.Millisecond
	watcher, err := ingest.NewWatcher(loader, dir, debounce)
	if err != nil {
		return err
	}
	watcher.OnReload(func(res *ingest.Result) error {
		if err := printIngestResult(out, res); err != nil {
			return err
		}
		return writeDump(store, ingestDumpPath)
	})

	pterm.Info.Printf("Watching %s (Ctrl+C to stop)\n", dir)
	return watcher.Run(ctx)
}

func printIngestResult(w io.Writer, res *ingest.Result) error {
	data := pterm.TableData{{"File", "Present", "Read", "Applied", "Skipped"}}
	for _, f := range res.Files {
		data = append(data, []string{
			f.File,
			strconv.FormatBool(f.Present),
			strconv.Itoa(f.Read),
			strconv.Itoa(f.Applied),
			strconv.Itoa(f.Skipped),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(w).Render(); err != nil {
		return errors.Wrap(err, "render ingest table")
	}

	for _, issue := range res.Warnings {
		fmt.Fprintf(w, "%s %s row %d: %s\n", pterm.Yellow("warning"), issue.File, issue.Row, issue.Message)
	}
	fmt.Fprintf(w, "Applied %d rows from %s in %dms\n", res.Applied(), res.Dir, res.DurationMs)
	return nil
}

// writeDump replaces path atomically so a concurrent --graph reader never
// sees a partial file
func writeDump(store *kg.Store, path string) error {
	if path == "" {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create dump %s", path)
	}
	defer os.Remove(tmp.Name())

	if err := store.Dump(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close dump %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replace dump %s", path)
	}

	logger.Infow("Wrote graph dump", logger.FieldFile, path)
	return nil
}

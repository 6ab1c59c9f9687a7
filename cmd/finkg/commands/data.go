package commands

import (
	"context"
	"database/sql"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/finkg/ai/provider"
	"github.com/teranos/finkg/ai/tracker"
	"github.com/teranos/finkg/am"
	"github.com/teranos/finkg/db"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/ingest"
	"github.com/teranos/finkg/kg"
	"github.com/teranos/finkg/logger"
	"github.com/teranos/finkg/reasoning"
	"github.com/teranos/finkg/trace"
)

// dataFlags selects what goes into the graph before a command runs:
// the demo seed, an N-Triples dump, and a directory of delimited files.
type dataFlags struct {
	graphPath string
	dataDir   string
	noSeed    bool
}

// register adds the flags to cmd and every subcommand of it
func (f *dataFlags) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&f.graphPath, "graph", "", "N-Triples file to load (default graph.dump_path)")
	flags.StringVar(&f.dataDir, "data-dir", "", "Directory of clients/accounts/transactions/rules files (default ingest.data_dir)")
	flags.BoolVar(&f.noSeed, "no-seed", false, "Do not load the built-in demo data")
}

// buildStore assembles the graph. The seed is skipped when a dump is given,
// since a dump already carries whatever was seeded when it was written.
func (f *dataFlags) buildStore(ctx context.Context, cfg *am.Config) (*kg.Store, error) {
	log := logger.Named("data")
	store := kg.NewStore(kg.WithBaseIRI(cfg.Graph.BaseIRI), kg.WithLogger(log))

	graphPath := orDefault(f.graphPath, cfg.Graph.DumpPath)
	if !f.noSeed && graphPath == "" {
		ingest.Seed(store)
		log.Debugw("Seeded demo data")
	}

	if graphPath != "" {
		file, err := os.Open(graphPath)
		if err != nil {
			return nil, errors.Wrapf(err, "open graph dump %s", graphPath)
		}
		defer file.Close()
		if err := store.Load(file); err != nil {
			return nil, errors.Wrapf(err, "load graph dump %s", graphPath)
		}
		log.Infow("Loaded graph dump", logger.FieldFile, graphPath)
	}

	if dir := orDefault(f.dataDir, cfg.Ingest.DataDir); dir != "" {
		res, err := newLoader(store, cfg).LoadDir(ctx, dir)
		if err != nil {
			return nil, err
		}
		log.Infow("Ingested data directory", "dir", dir, logger.FieldRows, res.Applied(), "warnings", len(res.Warnings))
	}

	return store, nil
}

func newLoader(store *kg.Store, cfg *am.Config) *ingest.Loader {
	opts := []ingest.LoaderOption{ingest.WithLogger(logger.Named("ingest"))}
	if d := []rune(cfg.Ingest.Delimiter); len(d) == 1 {
		opts = append(opts, ingest.WithDelimiter(d[0]))
	}
	return ingest.NewLoader(store, opts...)
}

// newReasoner builds the configured chat client. The returned close func
// releases the usage database when tracking is on; it is never nil.
func newReasoner(cfg *am.Config) (*reasoning.Reasoner, func(), error) {
	noop := func() {}
	if err := cfg.Validate(); err != nil {
		return nil, noop, errors.Wrap(err, "invalid configuration")
	}

	opts := []provider.Option{provider.WithLogger(logger.Named("ai"))}
	var usageDB *sql.DB
	if cfg.Database.TrackUsage {
		conn, err := db.OpenWithMigrations(cfg.Database.Path, logger.Named("db"))
		if err != nil {
			return nil, noop, err
		}
		usageDB = conn
		opts = append(opts, provider.WithTracker(tracker.NewUsageTracker(conn)))
	}
	closeDB := func() {
		if usageDB != nil {
			usageDB.Close()
		}
	}

	client, err := provider.New(cfg, opts...)
	if err != nil {
		closeDB()
		return nil, noop, err
	}
	logger.Infow("Using model", "provider", client.Provider(), "model", client.Model())

	r := reasoning.New(client,
		reasoning.WithSystemPrompt(cfg.Reasoning.SystemPrompt),
		reasoning.WithLogger(logger.Named("reasoning")),
	)
	return r, closeDB, nil
}

// openTrace opens the trace log named by the flag or trace.path; nil when neither is set
func openTrace(flagPath string, cfg *am.Config) (*trace.Log, error) {
	path := orDefault(flagPath, cfg.Trace.Path)
	if path == "" {
		return nil, nil
	}
	return trace.Open(path, trace.WithLogger(logger.Named("trace")))
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"

	"github.com/fortuna/hockeysync/internal/app"
	"github.com/fortuna/hockeysync/internal/config"
	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/store"
	"github.com/fortuna/hockeysync/internal/store/repository"
)

const (
	appName    = "hockeysync-backfill"
	appVersion = "1.0.0"
)

type options struct {
	source      store.Source
	mode        ingest.Mode
	competition string
	name        string
	kind        string
	stopID      string
	persist     bool
}

func main() {
	var (
		configPath  = flag.String("config", getEnv("HOCKEYSYNC_CONFIG", ""), "Path to YAML config file")
		source      = flag.String("source", "tms", "Source to fetch (knhb or tms)")
		mode        = flag.String("mode", "", "Listing mode (knhb: upcoming|official, tms: all|upcoming|previous|in-progress)")
		competition = flag.String("competition", "", "Competition id; fetches its matches instead of the competition listing")
		name        = flag.String("name", "", "Competition name when it is neither configured nor stored")
		kind        = flag.String("type", "", "TMS competition type when the competition is not stored")
		stopID      = flag.String("stop", "", "Competition id to stop the TMS listing at")
		persist     = flag.Bool("persist", false, "Write fetched records to the database")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	opts := options{
		source:      store.Source(*source),
		mode:        ingest.Mode(*mode),
		competition: *competition,
		name:        *name,
		kind:        *kind,
		stopID:      *stopID,
		persist:     *persist,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting", "app", appName, "version", appVersion, "source", opts.source, "mode", opts.mode, "competition", opts.competition)
	if err := run(ctx, cfg, opts, logger, os.Stdout); err != nil {
		logger.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *logging.Logger, out io.Writer) error {
	sources, err := app.NewSources(cfg, logger)
	if err != nil {
		return err
	}

	var db *store.Database
	if opts.persist {
		db, err = store.NewDatabase(ctx, cfg.Database.DSN, store.PoolConfig{}, logger)
		if err != nil {
			return errors.Wrap(err, "connect database")
		}
		defer db.Close()
		if err := db.RunMigrations(); err != nil {
			return errors.Wrap(err, "run migrations")
		}
	}

	if opts.competition == "" {
		if opts.source != store.SourceTMS {
			return errors.Newf("source %s has no competition listing; pass -competition", opts.source)
		}
		return backfillCompetitions(ctx, sources, db, opts, logger, out)
	}
	return backfillMatches(ctx, cfg, sources, db, opts, logger, out)
}

func backfillCompetitions(ctx context.Context, sources *app.Sources, db *store.Database, opts options, logger *logging.Logger, out io.Writer) error {
	mode := opts.mode
	if mode == "" {
		mode = ingest.ModeAll
	}

	competitions, err := sources.TMSCompetitions.FetchCompetitions(ctx, mode, opts.stopID)
	if err != nil {
		return err
	}
	logger.Info("competitions fetched", "count", competitions.Len())

	if db != nil {
		n, err := repository.NewCompetitionRepository(db).UpsertMany(ctx, competitions.Values())
		if err != nil {
			return err
		}
		logger.Info("competitions stored", "count", n)
	}
	return writeJSON(out, competitions)
}

func backfillMatches(ctx context.Context, cfg *config.Config, sources *app.Sources, db *store.Database, opts options, logger *logging.Logger, out io.Writer) error {
	fetcher, err := sources.MatchFetcher(opts.source)
	if err != nil {
		return err
	}

	mode := opts.mode
	if mode == "" && opts.source == store.SourceKNHB {
		mode = ingest.ModeUpcoming
	}

	competition, err := resolveCompetition(ctx, cfg, db, opts)
	if err != nil {
		return err
	}

	var officials ingest.OfficialsByMatch
	if db != nil && opts.source == store.SourceTMS {
		officials, err = repository.NewOfficialRepository(db).ByCompetition(ctx, opts.source, competition.ID)
		if err != nil {
			return err
		}
	}

	matches, err := fetcher.FetchMatches(ctx, mode, competition, officials)
	if err != nil {
		return err
	}
	logger.Info("matches fetched", "competition", competition.ID, "count", matches.Len())

	if db != nil {
		if _, err := repository.NewCompetitionRepository(db).UpsertMany(ctx, []*store.Competition{competition}); err != nil {
			return err
		}
		n, err := repository.NewMatchRepository(db).UpsertMany(ctx, opts.source, matches.Values())
		if err != nil {
			return err
		}
		logger.Info("matches stored", "count", n)
	}
	return writeJSON(out, matches)
}

// resolveCompetition prefers the stored competition, then the configured
// one, then the flags.
func resolveCompetition(ctx context.Context, cfg *config.Config, db *store.Database, opts options) (*store.Competition, error) {
	if db != nil {
		stored, err := repository.NewCompetitionRepository(db).Get(ctx, opts.source, opts.competition)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if opts.source == store.SourceKNHB {
		for _, c := range app.KNHBCompetitions(cfg) {
			if c.ID == opts.competition {
				return c, nil
			}
		}
	}

	competition := store.NewCompetition(opts.source, 0)
	if err := competition.SetID(opts.competition); err != nil {
		return nil, err
	}
	competition.Name = opts.name
	competition.Type = opts.kind
	return competition, nil
}

func writeJSON(out io.Writer, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode output")
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

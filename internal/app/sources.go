// Package app assembles the configured fetchers shared by the binaries.
package app

import (
	"time"
	_ "time/tzdata"

	"github.com/cockroachdb/errors"

	"github.com/fortuna/hockeysync/internal/config"
	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/ingest/knhb"
	"github.com/fortuna/hockeysync/internal/ingest/lookup"
	"github.com/fortuna/hockeysync/internal/ingest/request"
	"github.com/fortuna/hockeysync/internal/ingest/tms"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/reconciliation"
	"github.com/fortuna/hockeysync/internal/store"
)

// Sources are the fetchers of both upstream systems sharing one engine.
type Sources struct {
	Engine          *reconciliation.Engine
	KNHB            *knhb.Fetcher
	TMSCompetitions *tms.CompetitionFetcher
	TMSMatches      *tms.MatchFetcher
}

// NewSources builds the fetchers described by cfg.
func NewSources(cfg *config.Config, logger *logging.Logger) (*Sources, error) {
	if logger == nil {
		logger = logging.Default()
	}

	tables := lookup.Default()
	if cfg.Lookup.File != "" {
		loaded, err := lookup.LoadFile(cfg.Lookup.File)
		if err != nil {
			return nil, errors.Wrap(err, "load lookup tables")
		}
		tables = loaded
	}
	engine := reconciliation.NewEngine(tables)

	loc, err := time.LoadLocation(cfg.KNHB.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load knhb timezone %q", cfg.KNHB.Timezone)
	}

	knhbFetcher := knhb.New(cfg.KNHB.BaseURL,
		newRequester(cfg.Request, "KNHBMatchFetcher", logger),
		engine,
		knhb.WithLocation(loc),
		knhb.WithLogger(logger),
	)

	client := tms.NewClient(cfg.TMS.BaseURL, newRequester(cfg.Request, "TMSFetcher", logger), engine, logger)

	return &Sources{
		Engine:          engine,
		KNHB:            knhbFetcher,
		TMSCompetitions: tms.NewCompetitionFetcher(client),
		TMSMatches:      tms.NewMatchFetcher(client),
	}, nil
}

// MatchFetcher returns the match fetcher of source.
func (s *Sources) MatchFetcher(source store.Source) (ingest.MatchFetcher, error) {
	switch source {
	case store.SourceKNHB:
		return s.KNHB, nil
	case store.SourceTMS:
		return s.TMSMatches, nil
	default:
		return nil, errors.Newf("unknown source %q", source)
	}
}

// KNHBCompetitions turns the configured KNHB competitions into models,
// indexed in configuration order.
func KNHBCompetitions(cfg *config.Config) []*store.Competition {
	out := make([]*store.Competition, 0, len(cfg.KNHB.Competitions))
	for i, c := range cfg.KNHB.Competitions {
		competition := store.NewCompetition(store.SourceKNHB, i)
		competition.ID = c.ID
		competition.Name = c.Name
		out = append(out, competition)
	}
	return out
}

// Modes converts configured mode names.
func Modes(names []string) []ingest.Mode {
	out := make([]ingest.Mode, 0, len(names))
	for _, name := range names {
		out = append(out, ingest.Mode(name))
	}
	return out
}

func newRequester(cfg config.RequestConfig, component string, logger *logging.Logger) *request.Requester {
	return request.New(request.Config{
		Component:      component,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RateLimitDelay: cfg.RateLimitDelay,
		RetryDelay:     cfg.RetryDelay,
		UserAgent:      cfg.UserAgent,
		Logger:         logger,
	})
}

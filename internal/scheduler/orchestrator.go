package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc"

	"github.com/fortuna/hockeysync/internal/cache"
	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/reconciliation"
	"github.com/fortuna/hockeysync/internal/store"
)

// CompetitionStore persists and lists competitions.
type CompetitionStore interface {
	UpsertMany(ctx context.Context, competitions []*store.Competition) (int, error)
	List(ctx context.Context, source store.Source) ([]*store.Competition, error)
}

// MatchStore persists matches of one source.
type MatchStore interface {
	UpsertMany(ctx context.Context, source store.Source, matches []*store.Match) (int, error)
}

// OfficialStore loads officials assigned to the matches of a competition.
type OfficialStore interface {
	ByCompetition(ctx context.Context, source store.Source, competitionID string) (map[string][]*store.Official, error)
}

// CursorStore keeps incremental sync cursors and drops stale cached listings.
type CursorStore interface {
	Cursor(ctx context.Context, source store.Source, mode ingest.Mode) (string, error)
	SetCursor(ctx context.Context, source store.Source, mode ingest.Mode, id string) error
	Delete(ctx context.Context, keys ...string) error
}

// Publisher announces fetched records.
type Publisher interface {
	PublishCompetitions(ctx context.Context, source store.Source, competitions []*store.Competition) (int, error)
	PublishMatches(ctx context.Context, source store.Source, matches []*store.Match) (int, error)
}

// ReconciliationStats reports what the normalization engine has processed.
type ReconciliationStats interface {
	Metrics() reconciliation.Metrics
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	TMSCompetitions ingest.CompetitionFetcher
	TMSMatches      ingest.MatchFetcher
	KNHBMatches     ingest.MatchFetcher
	Competitions    CompetitionStore
	Matches         MatchStore
	Officials       OfficialStore
	Cursors         CursorStore
	Publisher       Publisher
	Reconciliation  ReconciliationStats
	Logger          *logging.Logger
}

// Config holds scheduler configuration
type Config struct {
	DiscoveryInterval time.Duration // Default: 6h
	MatchInterval     time.Duration // Default: 15m
	Workers           int           // Default: 4
	TMSModes          []ingest.Mode
	KNHBModes         []ingest.Mode
	KNHBCompetitions  []*store.Competition
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		DiscoveryInterval: 6 * time.Hour,
		MatchInterval:     15 * time.Minute,
		Workers:           4,
		TMSModes:          []ingest.Mode{ingest.ModeInProgress, ingest.ModeUpcoming, ingest.ModePrevious},
		KNHBModes:         []ingest.Mode{ingest.ModeUpcoming, ingest.ModeOfficial},
	}
}

// Orchestrator runs competition discovery and match syncs on a schedule.
type Orchestrator struct {
	deps   Deps
	config *Config
	logger *logging.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu                sync.Mutex
	lastDiscovery     time.Time
	lastMatchSync     time.Time
	consecutiveErrors int
	syncedMatches     atomic.Int64
}

// NewOrchestrator creates a new scheduler orchestrator
func NewOrchestrator(deps Deps, config *Config) (*Orchestrator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.DiscoveryInterval <= 0 {
		config.DiscoveryInterval = defaults.DiscoveryInterval
	}
	if config.MatchInterval <= 0 {
		config.MatchInterval = defaults.MatchInterval
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if deps.TMSCompetitions == nil || deps.TMSMatches == nil || deps.KNHBMatches == nil {
		return nil, errors.New("scheduler: fetchers are required")
	}
	if deps.Competitions == nil || deps.Matches == nil || deps.Officials == nil {
		return nil, errors.New("scheduler: stores are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Orchestrator{
		deps:   deps,
		config: config,
		logger: logger.With("component", "scheduler"),
	}, nil
}

// Start runs both loops until ctx is cancelled or Stop is called. It returns
// once in-flight tasks have finished.
func (o *Orchestrator) Start(ctx context.Context) {
	o.logger.Info("scheduler starting",
		"discovery_interval", o.config.DiscoveryInterval,
		"match_interval", o.config.MatchInterval,
		"workers", o.config.Workers,
		"knhb_competitions", len(o.config.KNHBCompetitions),
	)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.mu.Lock()
	o.cancel = cancel
	o.done = done
	o.mu.Unlock()
	defer close(done)

	var wg conc.WaitGroup
	wg.Go(func() { o.runLoop(ctx, "discovery", o.config.DiscoveryInterval, o.DiscoverCompetitions) })
	wg.Go(func() { o.runLoop(ctx, "matches", o.config.MatchInterval, o.SyncMatches) })
	wg.Wait()

	o.logger.Info("scheduler stopped")
}

// Stop cancels both loops and waits for a running Start to return.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) runLoop(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	o.runTask(ctx, name, task)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.runTask(ctx, name, task)
		}
	}
}

func (o *Orchestrator) runTask(ctx context.Context, name string, task func(context.Context) error) {
	start := time.Now()
	err := task(ctx)

	o.mu.Lock()
	if err != nil {
		o.consecutiveErrors++
	} else {
		o.consecutiveErrors = 0
	}
	failures := o.consecutiveErrors
	o.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.logger.Error("scheduled task failed", "task", name, "error", err, "consecutive_errors", failures)
		return
	}
	o.logger.Info("scheduled task complete", "task", name, "duration", time.Since(start).Round(time.Millisecond))
}

// DiscoverCompetitions walks every configured TMS listing, stopping at the
// newest competition seen on the previous run, and records the new cursor.
func (o *Orchestrator) DiscoverCompetitions(ctx context.Context) error {
	var errs error
	for _, mode := range o.config.TMSModes {
		if err := o.discover(ctx, mode); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "discover %s competitions", mode))
		}
	}

	o.mu.Lock()
	o.lastDiscovery = time.Now()
	o.mu.Unlock()
	return errs
}

func (o *Orchestrator) discover(ctx context.Context, mode ingest.Mode) error {
	stopID := ""
	if o.deps.Cursors != nil {
		id, err := o.deps.Cursors.Cursor(ctx, store.SourceTMS, mode)
		if err != nil {
			o.logger.Warn("cursor unavailable, walking full listing", "mode", mode, "error", err)
		} else {
			stopID = id
		}
	}

	fetched, err := o.deps.TMSCompetitions.FetchCompetitions(ctx, mode, stopID)
	if err != nil {
		return err
	}
	competitions := fetched.Values()
	if len(competitions) == 0 {
		o.logger.Debug("no new competitions", "mode", mode, "stop_id", stopID)
		return nil
	}

	if _, err := o.deps.Competitions.UpsertMany(ctx, competitions); err != nil {
		return err
	}
	o.invalidate(ctx, cache.CompetitionsKey(store.SourceTMS), cache.CompetitionsKey(""))

	if o.deps.Publisher != nil {
		if _, err := o.deps.Publisher.PublishCompetitions(ctx, store.SourceTMS, competitions); err != nil {
			o.logger.Warn("publish competitions failed", "mode", mode, "error", err)
		}
	}

	// Only the previous and all listings honour a stop id.
	if o.deps.Cursors != nil && (mode == ingest.ModePrevious || mode == ingest.ModeAll) {
		if err := o.deps.Cursors.SetCursor(ctx, store.SourceTMS, mode, competitions[0].ID); err != nil {
			o.logger.Warn("cursor not saved", "mode", mode, "error", err)
		}
	}

	o.logger.Info("competitions discovered", "mode", mode, "count", len(competitions), "stop_id", stopID)
	return nil
}

type matchJob struct {
	fetcher     ingest.MatchFetcher
	mode        ingest.Mode
	competition *store.Competition
}

// SyncMatches fetches the matches of every known TMS competition and every
// configured KNHB competition on a worker pool. A failing competition does
// not stop the others; all failures are returned combined.
func (o *Orchestrator) SyncMatches(ctx context.Context) error {
	jobs, err := o.matchJobs(ctx)
	if err != nil {
		return err
	}

	pool, err := ants.NewPool(o.config.Workers)
	if err != nil {
		return errors.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	var (
		errMu sync.Mutex
		errs  error
	)
	var workers sync.WaitGroup
	for _, job := range jobs {
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			if err := o.syncCompetition(ctx, job); err != nil {
				errMu.Lock()
				errs = errors.CombineErrors(errs, err)
				errMu.Unlock()
			}
		}); err != nil {
			workers.Done()
			errMu.Lock()
			errs = errors.CombineErrors(errs, errors.Wrap(err, "submit match sync"))
			errMu.Unlock()
		}
	}
	workers.Wait()

	o.mu.Lock()
	o.lastMatchSync = time.Now()
	o.mu.Unlock()
	return errs
}

func (o *Orchestrator) matchJobs(ctx context.Context) ([]matchJob, error) {
	var jobs []matchJob

	tmsCompetitions, err := o.deps.Competitions.List(ctx, store.SourceTMS)
	if err != nil {
		return nil, errors.Wrap(err, "list tms competitions")
	}
	for _, c := range tmsCompetitions {
		jobs = append(jobs, matchJob{fetcher: o.deps.TMSMatches, competition: c})
	}

	if len(o.config.KNHBCompetitions) > 0 {
		// Matches reference their competition, so configured ones are stored first.
		if _, err := o.deps.Competitions.UpsertMany(ctx, o.config.KNHBCompetitions); err != nil {
			return nil, errors.Wrap(err, "store knhb competitions")
		}
		for _, c := range o.config.KNHBCompetitions {
			for _, mode := range o.config.KNHBModes {
				jobs = append(jobs, matchJob{fetcher: o.deps.KNHBMatches, mode: mode, competition: c})
			}
		}
	}
	return jobs, nil
}

func (o *Orchestrator) syncCompetition(ctx context.Context, job matchJob) error {
	source := job.fetcher.Source()
	logger := o.logger.With("source", source, "competition", job.competition.ID, "mode", job.mode)

	var officials ingest.OfficialsByMatch
	if source == store.SourceTMS {
		byMatch, err := o.deps.Officials.ByCompetition(ctx, source, job.competition.ID)
		if err != nil {
			return errors.Wrapf(err, "load officials for %s", job.competition.ID)
		}
		officials = byMatch
	}

	fetched, err := job.fetcher.FetchMatches(ctx, job.mode, job.competition, officials)
	if err != nil {
		logger.Warn("match fetch failed", "error", err)
		return errors.Wrapf(err, "fetch %s matches of %s", source, job.competition.ID)
	}

	matches := fetched.Values()
	if len(matches) == 0 {
		return nil
	}

	if _, err := o.deps.Matches.UpsertMany(ctx, source, matches); err != nil {
		return errors.Wrapf(err, "store %s matches of %s", source, job.competition.ID)
	}
	o.invalidate(ctx, cache.MatchesKey(source, job.competition.ID))
	o.syncedMatches.Add(int64(len(matches)))

	if o.deps.Publisher != nil {
		if _, err := o.deps.Publisher.PublishMatches(ctx, source, matches); err != nil {
			logger.Warn("publish matches failed", "error", err)
		}
	}

	logger.Debug("matches synced", "count", len(matches))
	return nil
}

func (o *Orchestrator) invalidate(ctx context.Context, keys ...string) {
	if o.deps.Cursors == nil {
		return
	}
	if err := o.deps.Cursors.Delete(ctx, keys...); err != nil {
		o.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := map[string]interface{}{
		"discovery_interval": o.config.DiscoveryInterval.String(),
		"match_interval":     o.config.MatchInterval.String(),
		"workers":            o.config.Workers,
		"knhb_competitions":  len(o.config.KNHBCompetitions),
		"consecutive_errors": o.consecutiveErrors,
		"synced_matches":     o.syncedMatches.Load(),
	}
	if !o.lastDiscovery.IsZero() {
		status["last_discovery"] = o.lastDiscovery.UTC().Format(time.RFC3339)
	}
	if !o.lastMatchSync.IsZero() {
		status["last_match_sync"] = o.lastMatchSync.UTC().Format(time.RFC3339)
	}
	if o.deps.Reconciliation != nil {
		status["reconciliation"] = o.deps.Reconciliation.Metrics()
	}
	return status
}

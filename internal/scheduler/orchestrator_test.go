package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/reconciliation"
	"github.com/fortuna/hockeysync/internal/store"
)

type fakeCompetitionFetcher struct {
	mu      sync.Mutex
	byMode  map[ingest.Mode][]*store.Competition
	stopIDs map[ingest.Mode]string
}

func (f *fakeCompetitionFetcher) FetchCompetitions(_ context.Context, mode ingest.Mode, stopID string) (*ingest.Competitions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopIDs[mode] = stopID
	out := store.NewOrderedMap[string, *store.Competition]()
	for _, c := range f.byMode[mode] {
		if c.ID == stopID {
			break
		}
		out.Set(c.ID, c)
	}
	return out, nil
}

type fakeMatchFetcher struct {
	source    store.Source
	mu        sync.Mutex
	calls     []string
	officials map[string]ingest.OfficialsByMatch
	fail      map[string]bool
}

func (f *fakeMatchFetcher) Source() store.Source { return f.source }

func (f *fakeMatchFetcher) FetchMatches(_ context.Context, mode ingest.Mode, c *store.Competition, officials ingest.OfficialsByMatch) (*ingest.Matches, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c.ID+"/"+string(mode))
	if f.officials == nil {
		f.officials = map[string]ingest.OfficialsByMatch{}
	}
	f.officials[c.ID] = officials
	f.mu.Unlock()

	if f.fail[c.ID] {
		return nil, errors.New("upstream down")
	}
	out := store.NewOrderedMap[string, *store.Match]()
	m := store.NewMatch(c)
	m.ID = c.ID + "-" + string(mode) + "-1"
	out.Set(m.ID, m)
	return out, nil
}

func (f *fakeMatchFetcher) sortedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := append([]string(nil), f.calls...)
	sort.Strings(calls)
	return calls
}

type fakeStore struct {
	mu           sync.Mutex
	competitions []*store.Competition
	matches      map[store.Source][]string
	officials    map[string][]*store.Official
}

func newFakeStore() *fakeStore {
	return &fakeStore{matches: map[store.Source][]string{}}
}

func (s *fakeStore) UpsertMany(_ context.Context, competitions []*store.Competition) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.competitions = append(s.competitions, competitions...)
	return len(competitions), nil
}

func (s *fakeStore) List(_ context.Context, source store.Source) ([]*store.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Competition
	for _, c := range s.competitions {
		if c.Source == source {
			out = append(out, c)
		}
	}
	return out, nil
}

type matchStore struct{ *fakeStore }

func (s matchStore) UpsertMany(_ context.Context, source store.Source, matches []*store.Match) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range matches {
		s.matches[source] = append(s.matches[source], m.ID)
	}
	return len(matches), nil
}

func (s *fakeStore) ByCompetition(_ context.Context, _ store.Source, _ string) (map[string][]*store.Official, error) {
	return s.officials, nil
}

type fakeCursors struct {
	mu      sync.Mutex
	cursors map[ingest.Mode]string
	deleted []string
}

func (c *fakeCursors) Cursor(_ context.Context, _ store.Source, mode ingest.Mode) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursors[mode], nil
}

func (c *fakeCursors) SetCursor(_ context.Context, _ store.Source, mode ingest.Mode, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors[mode] = id
	return nil
}

func (c *fakeCursors) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, keys...)
	return nil
}

type fakePublisher struct {
	mu           sync.Mutex
	competitions int
	matches      int
}

func (p *fakePublisher) PublishCompetitions(_ context.Context, _ store.Source, c []*store.Competition) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.competitions += len(c)
	return len(c), nil
}

func (p *fakePublisher) PublishMatches(_ context.Context, _ store.Source, m []*store.Match) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.matches += len(m)
	return len(m), nil
}

type harness struct {
	orch      *Orchestrator
	comps     *fakeCompetitionFetcher
	tms       *fakeMatchFetcher
	knhb      *fakeMatchFetcher
	store     *fakeStore
	cursors   *fakeCursors
	publisher *fakePublisher
}

func tmsComp(id string) *store.Competition {
	return &store.Competition{ID: id, Source: store.SourceTMS, Name: "Competition " + id}
}

func newHarness(t *testing.T, cfg *Config) *harness {
	t.Helper()
	h := &harness{
		comps:     &fakeCompetitionFetcher{byMode: map[ingest.Mode][]*store.Competition{}, stopIDs: map[ingest.Mode]string{}},
		tms:       &fakeMatchFetcher{source: store.SourceTMS, fail: map[string]bool{}},
		knhb:      &fakeMatchFetcher{source: store.SourceKNHB, fail: map[string]bool{}},
		store:     newFakeStore(),
		cursors:   &fakeCursors{cursors: map[ingest.Mode]string{}},
		publisher: &fakePublisher{},
	}
	orch, err := NewOrchestrator(Deps{
		TMSCompetitions: h.comps,
		TMSMatches:      h.tms,
		KNHBMatches:     h.knhb,
		Competitions:    h.store,
		Matches:         matchStore{h.store},
		Officials:       h.store,
		Cursors:         h.cursors,
		Publisher:       h.publisher,
		Logger:          logging.NewNop(),
	}, cfg)
	require.NoError(t, err)
	h.orch = orch
	return h
}

func TestNewOrchestrator_RequiresDeps(t *testing.T) {
	_, err := NewOrchestrator(Deps{}, nil)
	require.Error(t, err)
}

func TestDiscoverCompetitions_UsesAndAdvancesCursor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TMSModes = []ingest.Mode{ingest.ModePrevious, ingest.ModeUpcoming}
	h := newHarness(t, cfg)

	h.comps.byMode[ingest.ModePrevious] = []*store.Competition{tmsComp("30"), tmsComp("20"), tmsComp("10")}
	h.comps.byMode[ingest.ModeUpcoming] = []*store.Competition{tmsComp("40")}
	h.cursors.cursors[ingest.ModePrevious] = "20"

	ctx := context.Background()
	require.NoError(t, h.orch.DiscoverCompetitions(ctx))

	assert.Equal(t, "20", h.comps.stopIDs[ingest.ModePrevious])
	assert.Equal(t, "30", h.cursors.cursors[ingest.ModePrevious])
	_, upcomingCursor := h.cursors.cursors[ingest.ModeUpcoming]
	assert.False(t, upcomingCursor)

	stored, _ := h.store.List(ctx, store.SourceTMS)
	require.Len(t, stored, 2)
	assert.Equal(t, "30", stored[0].ID)
	assert.Equal(t, "40", stored[1].ID)
	assert.Equal(t, 2, h.publisher.competitions)
	assert.Contains(t, h.cursors.deleted, "hockeysync:competitions:tms")

	// Nothing new: the cursor stays put.
	require.NoError(t, h.orch.DiscoverCompetitions(ctx))
	assert.Equal(t, "30", h.comps.stopIDs[ingest.ModePrevious])
	assert.Equal(t, "30", h.cursors.cursors[ingest.ModePrevious])
}

func TestSyncMatches_FansOutAcrossSources(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 3
	cfg.KNHBCompetitions = []*store.Competition{{ID: "N8", Source: store.SourceKNHB, Name: "Hoofdklasse Heren"}}
	h := newHarness(t, cfg)
	h.store.competitions = []*store.Competition{tmsComp("101"), tmsComp("102")}
	h.store.officials = map[string][]*store.Official{"m1": {{ID: "o1", Name: "Umpire"}}}

	require.NoError(t, h.orch.SyncMatches(context.Background()))

	assert.Equal(t, []string{"101/", "102/"}, h.tms.sortedCalls())
	assert.Equal(t, []string{"N8/official", "N8/upcoming"}, h.knhb.sortedCalls())
	assert.Len(t, h.tms.officials["101"]["m1"], 1)
	assert.Nil(t, h.knhb.officials["N8"])

	assert.Len(t, h.store.matches[store.SourceTMS], 2)
	assert.Len(t, h.store.matches[store.SourceKNHB], 2)
	assert.Equal(t, 4, h.publisher.matches)
	assert.Contains(t, h.cursors.deleted, "hockeysync:matches:knhb:N8")

	status := h.orch.GetStatus()
	assert.EqualValues(t, 4, status["synced_matches"])
	assert.Contains(t, status, "last_match_sync")
}

func TestSyncMatches_FailureDoesNotStopOthers(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.store.competitions = []*store.Competition{tmsComp("101"), tmsComp("102"), tmsComp("103")}
	h.tms.fail["102"] = true

	err := h.orch.SyncMatches(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "102")

	sort.Strings(h.store.matches[store.SourceTMS])
	assert.Equal(t, []string{"101--1", "103--1"}, h.store.matches[store.SourceTMS])
}

func TestStartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiscoveryInterval = time.Hour
	cfg.MatchInterval = time.Hour
	cfg.TMSModes = []ingest.Mode{ingest.ModeUpcoming}
	h := newHarness(t, cfg)
	h.comps.byMode[ingest.ModeUpcoming] = []*store.Competition{tmsComp("1")}

	done := make(chan struct{})
	go func() {
		h.orch.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		status := h.orch.GetStatus()
		_, discovered := status["last_discovery"]
		_, synced := status["last_match_sync"]
		return discovered && synced
	}, 2*time.Second, 10*time.Millisecond)

	h.orch.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

// slowFetcher holds a match sync open until its context is cancelled.
type slowFetcher struct {
	once     sync.Once
	started  chan struct{}
	finished atomic.Bool
}

func (f *slowFetcher) Source() store.Source { return store.SourceTMS }

func (f *slowFetcher) FetchMatches(ctx context.Context, _ ingest.Mode, _ *store.Competition, _ ingest.OfficialsByMatch) (*ingest.Matches, error) {
	f.once.Do(func() { close(f.started) })
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	f.finished.Store(true)
	return nil, ctx.Err()
}

func TestStop_WaitsForRunningSync(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiscoveryInterval = time.Hour
	cfg.MatchInterval = time.Hour
	cfg.TMSModes = nil
	h := newHarness(t, cfg)
	h.store.competitions = []*store.Competition{tmsComp("1")}
	slow := &slowFetcher{started: make(chan struct{})}
	h.orch.deps.TMSMatches = slow

	go h.orch.Start(context.Background())
	select {
	case <-slow.started:
	case <-time.After(2 * time.Second):
		t.Fatal("match sync did not start")
	}

	h.orch.Stop()
	assert.True(t, slow.finished.Load())
}

func TestGetStatus_ReportsReconciliation(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	_, ok := h.orch.GetStatus()["reconciliation"]
	assert.False(t, ok)

	engine := reconciliation.NewEngine(nil)
	m := store.NewMatch(nil)
	reconciliation.ApplyStatus(m, true, "3 - 0")
	engine.Record(m)
	h.orch.deps.Reconciliation = engine

	status := h.orch.GetStatus()
	assert.Equal(t, reconciliation.Metrics{Matches: 1, Completed: 1, Scored: 1, UnknownGender: 1}, status["reconciliation"])
}

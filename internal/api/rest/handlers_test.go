package rest

import (
	"context"
	"net/http"
	"strings"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/service"
	"github.com/fortuna/hockeysync/internal/store"
)

type memoryRepo struct {
	competitions []*store.Competition
	matches      map[string][]*store.Match
	officials    map[string][]*store.Official
}

func (r *memoryRepo) List(_ context.Context, source store.Source) ([]*store.Competition, error) {
	var out []*store.Competition
	for _, c := range r.competitions {
		if source == "" || c.Source == source {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) Get(_ context.Context, source store.Source, id string) (*store.Competition, error) {
	for _, c := range r.competitions {
		if c.Source == source && c.ID == id {
			return c, nil
		}
	}
	return nil, errors.Wrapf(store.ErrNotFound, "competition %s/%s", source, id)
}

func (r *memoryRepo) ListByCompetition(_ context.Context, c *store.Competition) ([]*store.Match, error) {
	return r.matches[c.ID], nil
}

func (r *memoryRepo) ByCompetition(_ context.Context, _ store.Source, _ string) (map[string][]*store.Official, error) {
	return r.officials, nil
}

func (r *memoryRepo) ByMatches(_ context.Context, _ store.Source, matchIDs []string) (map[string][]*store.Official, error) {
	out := make(map[string][]*store.Official)
	for _, id := range matchIDs {
		if officials, ok := r.officials[id]; ok {
			out[id] = officials
		}
	}
	return out, nil
}

func (r *memoryRepo) Assign(_ context.Context, _ store.Source, _, matchID string, officials []*store.Official) error {
	r.officials[matchID] = officials
	return nil
}

type checkFunc func(context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type staticStatus map[string]interface{}

func (s staticStatus) GetStatus() map[string]interface{} { return s }

func newTestRouter(checks map[string]HealthChecker, scheduler StatusProvider) http.Handler {
	comp := &store.Competition{ID: "101", Source: store.SourceTMS, Name: "World Cup"}
	m1 := store.NewMatch(comp)
	m1.ID = "m1"
	repo := &memoryRepo{
		competitions: []*store.Competition{comp, {ID: "N8", Source: store.SourceKNHB, Name: "Hoofdklasse"}},
		matches:      map[string][]*store.Match{"101": {m1}},
		officials:    map[string][]*store.Official{"m1": {{ID: "o1", Name: "A. Umpire"}}},
	}
	logger := logging.NewNop()
	handler := NewHandler(
		service.NewCompetitionService(repo, nil, 0, logger),
		service.NewMatchService(repo, repo, repo, nil, 0, logger),
		service.NewOfficialService(repo, repo, nil, logger),
		checks,
		scheduler,
	)
	return NewRouter(handler, logger)
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	return do(t, h, http.MethodGet, target, "")
}

func do(t *testing.T, h http.Handler, method, target, payload string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(payload)))
	var body map[string]interface{}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestHealthCheck(t *testing.T) {
	h := newTestRouter(map[string]HealthChecker{
		"postgres": checkFunc(func(context.Context) error { return nil }),
	}, nil)
	rec, body := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	h = newTestRouter(map[string]HealthChecker{
		"redis": checkFunc(func(context.Context) error { return errors.New("connection refused") }),
	}, nil)
	rec, body = get(t, h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestGetCompetitions(t *testing.T) {
	h := newTestRouter(nil, nil)

	rec, body := get(t, h, "/api/v1/competitions")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])

	rec, body = get(t, h, "/api/v1/competitions?source=knhb")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = get(t, h, "/api/v1/competitions?source=espn")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["details"], "unknown source")
}

func TestGetCompetition(t *testing.T) {
	h := newTestRouter(nil, nil)

	rec, body := get(t, h, "/api/v1/competitions/tms/101")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "World Cup", body["name"])

	rec, _ = get(t, h, "/api/v1/competitions/tms/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMatches(t *testing.T) {
	h := newTestRouter(nil, nil)

	rec, body := get(t, h, "/api/v1/competitions/tms/101/matches")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
	matches := body["matches"].([]interface{})
	first := matches[0].(map[string]interface{})
	assert.Equal(t, "101", first["competition_id"])
	assert.Len(t, first["officials"], 1)

	rec, _ = get(t, h, "/api/v1/competitions/knhb/missing/matches")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = get(t, h, "/api/v1/competitions/fih/101/matches")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSchedulerStatus(t *testing.T) {
	rec, _ := get(t, newTestRouter(nil, nil), "/api/v1/scheduler/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, body := get(t, newTestRouter(nil, staticStatus{"workers": 4}), "/api/v1/scheduler/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["workers"])
}

func TestPutMatchOfficials(t *testing.T) {
	h := newTestRouter(nil, nil)

	rec, body := do(t, h, http.MethodPut, "/api/v1/competitions/tms/101/matches/m2/officials",
		`{"officials":[{"id":"o5","name":"D. Umpire","role":"umpire","country":"ARG"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, body["count"])

	rec, body = get(t, h, "/api/v1/competitions/tms/101/matches/m2/officials")
	require.Equal(t, http.StatusOK, rec.Code)
	officials := body["officials"].([]interface{})
	require.Len(t, officials, 1)
	assert.Equal(t, "D. Umpire", officials[0].(map[string]interface{})["name"])

	rec, _ = do(t, h, http.MethodPut, "/api/v1/competitions/tms/101/matches/m2/officials", `{"officials":[{"id":"o5"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPut, "/api/v1/competitions/tms/101/matches/m2/officials", `{"officials":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPut, "/api/v1/competitions/tms/999/matches/m2/officials", `{"officials":[]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMatchOfficials_Unassigned(t *testing.T) {
	rec, body := get(t, newTestRouter(nil, nil), "/api/v1/competitions/tms/101/matches/m9/officials")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["count"])
	assert.NotNil(t, body["officials"])
}

package rest

import (
	"context"
	"io"
	"net/http"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"

	"github.com/fortuna/hockeysync/internal/service"
	"github.com/fortuna/hockeysync/internal/store"
)

// HealthChecker is a dependency whose reachability /health reports.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatusProvider reports scheduler state.
type StatusProvider interface {
	GetStatus() map[string]interface{}
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	competitionService *service.CompetitionService
	matchService       *service.MatchService
	officialService    *service.OfficialService
	checks             map[string]HealthChecker
	scheduler          StatusProvider
}

// NewHandler creates a new handler. checks and scheduler may be nil.
func NewHandler(competitions *service.CompetitionService, matches *service.MatchService, officials *service.OfficialService, checks map[string]HealthChecker, scheduler StatusProvider) *Handler {
	return &Handler{
		competitionService: competitions,
		matchService:       matches,
		officialService:    officials,
		checks:             checks,
		scheduler:          scheduler,
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].HealthCheck(r.Context()); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":       state,
		"service":      "hockeysync",
		"dependencies": deps,
	})
}

// GetCompetitions returns stored competitions, optionally of one source
func (h *Handler) GetCompetitions(w http.ResponseWriter, r *http.Request) {
	source, err := service.ParseSource(r.URL.Query().Get("source"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid source (use knhb or tms)", err)
		return
	}

	competitions, err := h.competitionService.ListCompetitions(r.Context(), source)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch competitions", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"competitions": competitions,
		"count":        len(competitions),
	})
}

// GetCompetition returns one competition
func (h *Handler) GetCompetition(w http.ResponseWriter, r *http.Request) {
	source, id, ok := competitionKey(w, r)
	if !ok {
		return
	}

	competition, err := h.competitionService.GetCompetition(r.Context(), source, id)
	if err != nil {
		respondLookupError(w, "Competition not found", "Failed to fetch competition", err)
		return
	}

	respondJSON(w, http.StatusOK, competition)
}

// GetMatches returns the matches of a competition with their officials
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	source, id, ok := competitionKey(w, r)
	if !ok {
		return
	}

	matches, err := h.matchService.ListMatches(r.Context(), source, id)
	if err != nil {
		respondLookupError(w, "Competition not found", "Failed to fetch matches", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"competition_id": id,
		"source":         source,
		"matches":        matches,
		"count":          len(matches),
	})
}

// GetMatchOfficials returns the officials assigned to one match
func (h *Handler) GetMatchOfficials(w http.ResponseWriter, r *http.Request) {
	source, id, ok := competitionKey(w, r)
	if !ok {
		return
	}
	matchID := mux.Vars(r)["matchID"]

	officials, err := h.officialService.MatchOfficials(r.Context(), source, id, matchID)
	if err != nil {
		respondLookupError(w, "Competition not found", "Failed to fetch officials", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"match_id":  matchID,
		"officials": officials,
		"count":     len(officials),
	})
}

type assignOfficialsRequest struct {
	Officials []service.OfficialInput `json:"officials"`
}

// maxAssignmentBytes bounds an officials request body.
const maxAssignmentBytes = 64 << 10

// PutMatchOfficials replaces the officials assigned to one match
func (h *Handler) PutMatchOfficials(w http.ResponseWriter, r *http.Request) {
	source, id, ok := competitionKey(w, r)
	if !ok {
		return
	}
	matchID := mux.Vars(r)["matchID"]

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAssignmentBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	var req assignOfficialsRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	officials, err := h.officialService.AssignOfficials(r.Context(), source, id, matchID, req.Officials)
	if errors.Is(err, service.ErrInvalidOfficials) {
		respondError(w, http.StatusBadRequest, "Invalid officials", err)
		return
	}
	if err != nil {
		respondLookupError(w, "Competition not found", "Failed to assign officials", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"match_id":  matchID,
		"officials": officials,
		"count":     len(officials),
	})
}

// GetSchedulerStatus returns the scheduler status
func (h *Handler) GetSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		respondError(w, http.StatusServiceUnavailable, "Scheduler disabled", nil)
		return
	}
	respondJSON(w, http.StatusOK, h.scheduler.GetStatus())
}

func competitionKey(w http.ResponseWriter, r *http.Request) (store.Source, string, bool) {
	vars := mux.Vars(r)
	source, err := service.ParseSource(vars["source"])
	if err != nil || source == "" {
		respondError(w, http.StatusBadRequest, "Invalid source (use knhb or tms)", err)
		return "", "", false
	}
	return source, vars["competitionID"], true
}

func respondLookupError(w http.ResponseWriter, notFound, failed string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, notFound, err)
		return
	}
	respondError(w, http.StatusInternalServerError, failed, err)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := sonic.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	respondJSON(w, status, response)
}

package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/hockeysync/internal/logging"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
}

// NewServer creates a new REST API server
func NewServer(port string, handler *Handler, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}

	return &Server{
		port:    port,
		handler: handler,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           NewRouter(handler, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter wires the API routes and middleware.
func NewRouter(handler *Handler, logger *logging.Logger) *mux.Router {
	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Competitions
	api.HandleFunc("/competitions", handler.GetCompetitions).Methods("GET")
	api.HandleFunc("/competitions/{source}/{competitionID}", handler.GetCompetition).Methods("GET")
	api.HandleFunc("/competitions/{source}/{competitionID}/matches", handler.GetMatches).Methods("GET")

	// Officials
	api.HandleFunc("/competitions/{source}/{competitionID}/matches/{matchID}/officials", handler.GetMatchOfficials).Methods("GET")
	api.HandleFunc("/competitions/{source}/{competitionID}/matches/{matchID}/officials", handler.PutMatchOfficials).Methods("PUT")

	// Scheduler
	api.HandleFunc("/scheduler/status", handler.GetSchedulerStatus).Methods("GET")

	return router
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/service"
	"github.com/fortuna/hockeysync/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Subscribers are read-only, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server streams match updates from Redis to websocket subscribers
type Server struct {
	server *http.Server
	hub    *Hub
	relay  *Relay
	logger *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewServer creates a new WebSocket server relaying the knhb and tms match
// streams.
func NewServer(port string, client *redis.Client, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	hub := NewHub()
	s := &Server{
		hub:    hub,
		relay:  NewRelay(client, hub, logger, store.SourceKNHB, store.SourceTMS),
		logger: logger,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the websocket routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/matches", s.handleMatches)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start runs the hub and relay and serves until Shutdown.
func (s *Server) Start() error {
	s.run(context.Background())
	return s.server.ListenAndServe()
}

func (s *Server) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.hub.Run(ctx)
	go s.relay.Run(ctx)
}

// handleMatches subscribes a client to match updates, optionally narrowed by
// the source and competition query parameters.
func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	source, err := service.ParseSource(r.URL.Query().Get("source"))
	if err != nil {
		http.Error(w, "invalid source (use knhb or tms)", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		source:        source,
		competitionID: r.URL.Query().Get("competition"),
	}
	if !s.hub.join(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// handleHealth returns WebSocket server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body, _ := sonic.Marshal(map[string]interface{}{
		"status":  "healthy",
		"clients": s.hub.ClientCount(),
	})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// Shutdown stops the relay, disconnects subscribers and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return s.server.Shutdown(ctx)
}

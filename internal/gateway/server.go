// Package gateway is the relay's HTTP + WebSocket server: it accepts peer
// connections, routes realtime frames between them, queues messages for
// offline users, and exposes the persistence endpoint.
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-im/parley/internal/logging"
	"github.com/parley-im/parley/internal/store"
	"github.com/parley-im/parley/internal/version"
)

// Config tunes the relay server.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:8790".
	Addr string

	// CORSOrigins lists allowed browser origins. Empty denies cross-origin.
	CORSOrigins []string
}

// Server serves the relay endpoints.
type Server struct {
	cfg      Config
	log      *logging.Logger
	messages *store.MessageStore
	offline  *store.OfflineStore
	peers    *Registry
	upgrader websocket.Upgrader

	startedAt  time.Time
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a relay server backed by the given stores.
func NewServer(cfg Config, db *store.DB, log *logging.Logger) *Server {
	l := log.Sub("gateway")
	return &Server{
		cfg:      cfg,
		log:      l,
		messages: store.NewMessageStore(db),
		offline:  store.NewOfflineStore(db),
		peers:    NewRegistry(l),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Start begins listening. It returns once the listener is bound; serving
// continues on a background goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.startedAt = time.Now()
	s.httpServer = &http.Server{
		Handler:           withMiddleware(mux, s.log, s.cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("http server stopped")
		}
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Str("version", version.Version).Msg("relay listening")
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server, closing live peer connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.peers.CloseAll()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/messages", s.handleSaveMessages)
	mux.HandleFunc("GET /api/messages/offline", s.handleOfflineMessages)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

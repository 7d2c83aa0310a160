// Package server exposes the mutation surface, identity gate and reports
// over an HTTP JSON API, with a WebSocket feed broadcasting record changes
// to connected dashboards.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ebenezer-ucz/ebz/internal/ai"
	"github.com/ebenezer-ucz/ebz/internal/auth"
	"github.com/ebenezer-ucz/ebz/internal/state"
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address (default :8822).
	Addr string

	// Logger for request and feed activity.
	Logger *log.Logger
}

// Server serves the portal API.
type Server struct {
	addr   string
	logger *log.Logger

	st   *state.State
	gate *auth.Gate
	gen  *ai.Generator

	listener   net.Listener
	httpServer *http.Server

	sessions   map[string]auth.Session
	sessionsMu sync.RWMutex

	feed *Feed
}

// New creates a server over the given state container. gen may be nil to
// disable the AI endpoints' generation (fallback text still works through a
// fallback-only generator).
func New(st *state.State, gate *auth.Gate, gen *ai.Generator, config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	if config.Addr == "" {
		config.Addr = ":8822"
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[server] ", log.LstdFlags)
	}
	s := &Server{
		addr:     config.Addr,
		logger:   config.Logger,
		st:       st,
		gate:     gate,
		gen:      gen,
		sessions: make(map[string]auth.Session),
		feed:     NewFeed(config.Logger),
	}
	return s
}

// Feed returns the broadcast hub, for wiring as the state's event sink.
func (s *Server) Feed() *Feed { return s.feed }

// Start begins listening and serving. Non-blocking; use Shutdown to stop.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	s.routes(mux)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.feed.Start()
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("serve error: %v", err)
		}
	}()
	s.logger.Printf("listening on %s", s.Addr())
	return nil
}

// Addr returns the bound address, useful when the configured port was 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown drains connections and stops the feed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.feed.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("POST /api/setup", s.handleSetup)

	mux.HandleFunc("GET /api/tables/{table}", s.authed(s.handleList))
	mux.HandleFunc("POST /api/tables/{table}", s.authed(s.handleCreate))
	mux.HandleFunc("PUT /api/tables/{table}/{id}", s.authed(s.handleUpdate))
	mux.HandleFunc("DELETE /api/tables/{table}/{id}", s.authed(s.handleDelete))

	mux.HandleFunc("GET /api/reports/summary", s.authed(s.handleSummary))
	mux.HandleFunc("POST /api/ai/summary", s.authed(s.handleAISummary))
	mux.HandleFunc("POST /api/ai/setlist", s.authed(s.handleAISetlist))

	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// authed requires a bearer token from a prior login or setup call.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, auth.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		s.sessionsMu.RLock()
		session, ok := s.sessions[token]
		s.sessionsMu.RUnlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, session)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func (s *Server) newSession(session auth.Session) string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	token := hex.EncodeToString(buf)
	s.sessionsMu.Lock()
	s.sessions[token] = session
	s.sessionsMu.Unlock()
	return token
}

func (s *Server) dropSession(token string) {
	s.sessionsMu.Lock()
	delete(s.sessions, token)
	s.sessionsMu.Unlock()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket accept failed: %v", err)
		return
	}
	s.feed.AddClient(r.Context(), conn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

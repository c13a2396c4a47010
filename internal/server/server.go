// Package server exposes the deliberation engine over HTTP and WebSocket:
// POST /v1/turns runs one turn, GET /v1/status reports health, and
// GET /v1/stream pushes turn events to rendering clients.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/looplinehq/quorum/internal/auth"
	"github.com/looplinehq/quorum/internal/config"
	"github.com/looplinehq/quorum/internal/data"
	"github.com/looplinehq/quorum/internal/llm"
	"github.com/looplinehq/quorum/internal/logging"
	"github.com/looplinehq/quorum/internal/orchestrator"
)

// Server wires the HTTP surface around the deliberation engine.
type Server struct {
	cfg      config.ServerConfig
	engine   *orchestrator.Engine
	store    *data.Store
	provider llm.Provider
	log      *logging.Logger
	hub      *Hub

	httpServer *http.Server
}

// New builds the server and attaches the stream hub as the engine's event
// sink so connected clients see turn progress live.
func New(cfg config.ServerConfig, engine *orchestrator.Engine, store *data.Store, provider llm.Provider, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Global()
	}
	log = log.WithComponent("server")

	hub := NewHub(log)
	engine.SetEventSink(hub)

	return &Server{
		cfg:      cfg,
		engine:   engine,
		store:    store,
		provider: provider,
		log:      log,
		hub:      hub,
	}
}

// Handler assembles the route table with auth and request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/turns", s.handleTurn)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/stream", s.hub.handleStream)

	mw := auth.NewMiddleware(auth.NewKeychain(s.cfg.APIKeys))
	return s.logRequests(mw.RequireKey(mux))
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("listening on %s", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	timeout := time.Duration(s.cfg.ShutdownTimeoutSeconds) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}

// logRequests logs every request with its status and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.log.Info("%s %s -> %d (%s)", r.Method, r.URL.Path, recorder.status, time.Since(start).Round(time.Millisecond))
	})
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes through so the WebSocket upgrade on /v1/stream still works
// behind the logging wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

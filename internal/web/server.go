// Package web exposes ingestion and querying over HTTP.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"fiscaletl/internal/ingest"
	"fiscaletl/internal/nlsql"
	"fiscaletl/internal/storage"
)

// Options tunes request handling.
type Options struct {
	// MaxUploadBytes caps a whole multipart request. <= 0 disables the cap.
	MaxUploadBytes int64
	// QueryLimit caps rows returned by /api/query and /api/ask.
	QueryLimit int
	// DefaultMode applies when an upload names no mode.
	DefaultMode storage.Mode
}

// Server is the HTTP surface. Build it with NewServer.
type Server struct {
	engine *ingest.Engine
	sink   storage.Sink
	gen    nlsql.Generator
	opt    Options
	log    zerolog.Logger
	router *chi.Mux

	mu     sync.Mutex
	server *http.Server

	// writeMu keeps batches sequential against the sink.
	writeMu sync.Mutex
}

// NewServer wires handlers around engine and sink. gen may be nil, in which
// case /api/ask answers 503.
func NewServer(engine *ingest.Engine, sink storage.Sink, gen nlsql.Generator, opt Options, log zerolog.Logger) *Server {
	if opt.QueryLimit <= 0 {
		opt.QueryLimit = storage.DefaultQueryLimit
	}
	s := &Server{
		engine: engine,
		sink:   sink,
		gen:    gen,
		opt:    opt,
		log:    log,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/uploads", s.handleUpload)
		r.Get("/tables", s.handleListTables)
		r.Get("/tables/{name}/columns", s.handleColumns)
		r.Post("/query", s.handleQuery)
		r.Post("/ask", s.handleAsk)
	})
}

// Router returns the handler, for tests and embedding.
func (s *Server) Router() http.Handler { return s.router }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.log.Info().Str("addr", addr).Msg("web: listening")
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	SQL   string `json:"sql,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.writeErrorSQL(w, r, status, err, "")
}

// writeErrorSQL is writeError carrying the statement that was generated.
func (s *Server) writeErrorSQL(w http.ResponseWriter, r *http.Request, status int, err error, sql string) {
	ev := s.log.Warn()
	if status >= http.StatusInternalServerError {
		ev = s.log.Error()
	}
	ev.Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Err(err).
		Msg("web: request failed")
	writeJSON(w, status, errorBody{Error: err.Error(), SQL: sql})
}

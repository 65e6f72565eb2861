// Package api serves the operational HTTP surface: health, metrics, stats,
// the tracked-match view and the live event stream.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/okian/scoreline/internal/adapters/repository"
	"github.com/okian/scoreline/internal/domain/types"
	"github.com/rs/cors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // shared codec

// Dependencies required by HTTP handlers. Reads are served from the view
// the poll loop publishes, never from the live store.
type Dependencies interface {
	Matches(ctx context.Context) []types.MatchView
	Match(ctx context.Context, matchID string) (types.MatchView, error)
}

// Server wires HTTP routes for the ops API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	matchesHandler *MatchesHandler

	stream         http.Handler
	extra          []func(*mux.Router)
	allowedOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithStream mounts a websocket handler at /ws.
func WithStream(h http.Handler) Option {
	return func(s *Server) { s.stream = h }
}

// WithRoutes lets other packages mount routes on the same router.
func WithRoutes(register func(*mux.Router)) Option {
	return func(s *Server) {
		if register != nil {
			s.extra = append(s.extra, register)
		}
	}
}

// WithAllowedOrigins sets the CORS origins; empty allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		matchesHandler: NewMatchesHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to router.
func (s *Server) Register(_ context.Context, router *mux.Router) {
	router.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	router.Handle("/metrics", s.healthHandler.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	router.HandleFunc("/matches", MetricsMiddleware(s.matchesHandler.HandleList, "matches")).Methods(http.MethodGet)
	router.HandleFunc("/matches/{id}", MetricsMiddleware(s.matchesHandler.HandleGet, "match")).Methods(http.MethodGet)
	if s.stream != nil {
		router.Handle("/ws", s.stream)
	}
	for _, register := range s.extra {
		register(router)
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
}

// Handler builds the router and wraps it with CORS.
func (s *Server) Handler(ctx context.Context) http.Handler {
	router := mux.NewRouter()
	s.Register(ctx, router)

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(router)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

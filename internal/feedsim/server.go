package feedsim

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // shared codec

// Server serves a Simulator over a football-data.org compatible API.
type Server struct {
	sim    *Simulator
	router *mux.Router

	apiKey            string
	rateLimitEvery    int // every nth request answers 429, 0 = never
	rateLimitReset    int // seconds advertised in X-RequestCounter-Reset
	advancePerRequest int // simulated minutes per served request

	mu       sync.Mutex
	requests int
	limited  int
}

// NewServer wires the simulator behind GET /matches and GET /v4/matches.
func NewServer(sim *Simulator, opts ...ServerOption) *Server {
	s := &Server{sim: sim, rateLimitReset: 60}
	for _, opt := range opts {
		opt(s)
	}
	r := mux.NewRouter()
	r.HandleFunc("/matches", s.handleMatches).Methods(http.MethodGet)
	r.HandleFunc("/v4/matches", s.handleMatches).Methods(http.MethodGet)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Stats returns how many requests were served and how many were rate limited.
func (s *Server) Stats() (requests, limited int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests, s.limited
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if s.apiKey != "" && r.Header.Get("X-Auth-Token") != s.apiKey {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"message":   "The resource you are looking for is restricted.",
			"errorCode": http.StatusForbidden,
		})
		return
	}

	s.mu.Lock()
	s.requests++
	limited := s.rateLimitEvery > 0 && s.requests%s.rateLimitEvery == 0
	if limited {
		s.limited++
	}
	s.mu.Unlock()

	if limited {
		w.Header().Set("X-RequestCounter-Reset", strconv.Itoa(s.rateLimitReset))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"message":   "You reached your request limit.",
			"errorCode": http.StatusTooManyRequests,
		})
		return
	}

	if s.advancePerRequest > 0 {
		s.sim.Advance(s.advancePerRequest)
	}

	matches := s.sim.Matches()
	if raw := r.URL.Query().Get("competitions"); raw != "" {
		want := map[string]bool{}
		for _, c := range strings.Split(raw, ",") {
			want[strings.ToUpper(strings.TrimSpace(c))] = true
		}
		filtered := matches[:0]
		for _, m := range matches {
			if want[m.Competition.Code] {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"resultSet": map[string]any{"count": len(matches)},
		"matches":   matches,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAPIKey requires the X-Auth-Token header.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) { s.apiKey = key }
}

// WithRateLimitEvery answers every nth request with 429.
func WithRateLimitEvery(n, resetSeconds int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.rateLimitEvery = n
		}
		if resetSeconds >= 0 {
			s.rateLimitReset = resetSeconds
		}
	}
}

// WithAdvancePerRequest moves the simulation forward on every served request.
func WithAdvancePerRequest(minutes int) ServerOption {
	return func(s *Server) {
		if minutes > 0 {
			s.advancePerRequest = minutes
		}
	}
}

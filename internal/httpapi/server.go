// Package httpapi exposes the Speakmate HTTP surface: the SSE chat
// endpoint, conversation history, the practice summary, and the
// operational endpoints (metrics, health probes).
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speakmate/speakmate/internal/health"
	"github.com/speakmate/speakmate/internal/observe"
	"github.com/speakmate/speakmate/internal/suggest"
	"github.com/speakmate/speakmate/internal/workflow"
	"github.com/speakmate/speakmate/pkg/provider/llm"
)

// Server routes the Speakmate API. Construct with NewServer; it implements
// http.Handler.
type Server struct {
	router   *mux.Router
	engine   *workflow.Engine
	llm      llm.Provider
	pipeline *suggest.Pipeline
	log      *slog.Logger
	origins  []string
}

// Option configures a Server created by NewServer.
type Option func(*Server)

// WithLogger overrides the logger, which defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithAllowedOrigins restricts browser CORS access to the given origins.
// Without it any origin is allowed.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// NewServer assembles the router. engine serves /chat and /history, llmp
// serves the summary's tips generation, and pipeline serves its vocabulary
// suggestions. metrics enables the observability middleware and /metrics;
// hh, when non-nil, adds the health probes.
func NewServer(engine *workflow.Engine, llmp llm.Provider, pipeline *suggest.Pipeline, metrics *observe.Metrics, hh *health.Handler, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		llm:      llmp,
		pipeline: pipeline,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	if metrics != nil {
		r.Use(observe.Middleware(metrics))
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	r.Use(s.cors)

	r.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/history/{thread_id}", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/summary", s.handleSummary).Methods(http.MethodPost)
	if hh != nil {
		hh.Register(r)
	}

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// cors handles preflight requests and sets the CORS headers on every
// response.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.origins) > 0 {
			reqOrigin := r.Header.Get("Origin")
			origin = ""
			for _, o := range s.origins {
				if o == reqOrigin {
					origin = o
					break
				}
			}
		}
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status. Encoding failures are logged;
// the status line has already been sent by then.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response failed", "error", err)
	}
}

// writeError sends a JSON error body with the given status.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

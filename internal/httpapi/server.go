// Package httpapi exposes the research-tree store, message bus and
// agents over HTTP: SSE endpoints for driving and resuming agent runs,
// a REST surface over the tree's command/query methods, and a small
// project save/load surface, grounded on backend/routers/agents.py,
// backend/routers/research_tree.py and backend/routers/projects.py.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/konglinxi/resvizcopilot/internal/agent"
	"github.com/konglinxi/resvizcopilot/internal/messagebus"
	"github.com/konglinxi/resvizcopilot/internal/metrics"
	"github.com/konglinxi/resvizcopilot/internal/project"
	"github.com/konglinxi/resvizcopilot/internal/retry"
	"github.com/konglinxi/resvizcopilot/internal/tree"
)

// Server wires the tree store, message bus, agent registry and project
// store into one chi.Router. It holds no state of its own beyond that.
type Server struct {
	Router chi.Router

	store    *tree.Store
	bus      *messagebus.Bus
	agents   map[string]*agent.Base
	projects project.Store
	retry    *retry.Engine
	httpm    *metrics.HTTPMetrics
	log      *slog.Logger

	registry *prometheus.Registry
}

// Deps bundles everything NewServer needs. Agents is keyed by the fixed
// name clients pass as agent_name ("auto_research_agent", "chat_agent"),
// not by tree node — per-call scoping flows through the request body's
// problem_id/solution_id instead.
type Deps struct {
	Store    *tree.Store
	Bus      *messagebus.Bus
	Agents   map[string]*agent.Base
	Projects project.Store
	Retry    *retry.Engine
	HTTP     *metrics.HTTPMetrics
	Registry *prometheus.Registry
	Log      *slog.Logger
}

// NewServer builds the router. Routes are mounted eagerly; callers
// typically pass Server.Router (or Server itself, which implements
// http.Handler) to http.Server.
func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		store:    d.Store,
		bus:      d.Bus,
		agents:   d.Agents,
		projects: d.Projects,
		retry:    d.Retry,
		httpm:    d.HTTP,
		log:      log,
		registry: d.Registry,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metricsMiddleware)

	r.Route("/agents", func(r chi.Router) {
		r.Post("/messages", s.handleSendMessage)
		r.Get("/messages/continue/{id}", s.handleContinueMessage)
		r.Post("/messages/stop", s.handleStopProcessing)
		r.Post("/messages/rollback-to/{id}", s.handleRollbackTo)
		r.Get("/status", s.handleAgentStatus)
	})

	r.Route("/research-tree", func(r chi.Router) {
		r.Post("/problems/root", s.handleAddRootProblem)
		r.Patch("/problems/root/{id}", s.handleUpdateRootProblem)
		r.Delete("/problems/root/{id}", s.handleDeleteRootProblem)
		r.Patch("/problems/{id}", s.handleUpdateProblem)
		r.Post("/problems/{id}/solutions", s.handleCreateSolution)
		r.Post("/problems/{id}/selected-solution", s.handleSetSelectedSolution)
		r.Patch("/solutions/{id}", s.handleUpdateSolution)
		r.Delete("/solutions/{id}", s.handleDeleteSolution)
		r.Get("/nodes/{id}", s.handleGetNode)
		r.Get("/snapshots/current-id", s.handleCurrentSnapshotID)
		r.Get("/snapshots/{id}", s.handleGetSnapshot)
		r.Get("/compact-text", s.handleCompactTextTree)
	})

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", s.handleListProjects)
		r.Post("/save", s.handleSaveProject)
		r.Post("/save-as", s.handleSaveProjectAs)
		r.Get("/current/full-data", s.handleCurrentFullData)
		r.Get("/{name}", s.handleLoadProject)
		r.Delete("/{name}", s.handleDeleteProject)
	})

	r.Get("/status", s.handleStatus)
	r.Get("/debug/retry-stats", s.handleRetryStats)

	gatherer := prometheus.Gatherer(prometheus.DefaultGatherer)
	if d.Registry != nil {
		gatherer = d.Registry
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.Router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// metricsMiddleware records request counts and latency by route
// pattern, adapted from http_metrics_middleware.go's responseWriter
// wrapper minus the OpenTelemetry span it also recorded there.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		s.httpm.Observe(route, rw.status, time.Since(start))
	})
}

// responseWriter captures the status code written and passes Flush
// through to the underlying writer, without which SSE handlers
// wrapped by this middleware would never actually flush.
type responseWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Package mockapi is an in-memory stand-in for the MARGEM admin API, used for
// local development of the admin tooling and by integration tests.
package mockapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"margem/internal/apierror"
	"margem/internal/platform/config"
	"margem/internal/platform/metrics"
)

const (
	// BasePath is where the admin API routes are mounted.
	BasePath     = "/admin"
	maxBodyBytes = 1 << 20
)

// Server serves the mock admin API.
type Server struct {
	cfg      config.MockServer
	data     *Dataset
	sessions *sessions
	faults   *faults
	lockout  *lockout
	policy   LockoutPolicy
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Server
	now      func() time.Time
	router   chi.Router
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDataset replaces the seeded dataset.
func WithDataset(d *Dataset) Option {
	return func(s *Server) {
		s.data = d
	}
}

// WithRegistry registers the server collectors on reg instead of a private
// registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithClock sets the time source used for token issuance and validation.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLockout replaces the failed login policy. A zero Attempts disables
// the lockout.
func WithLockout(policy LockoutPolicy) Option {
	return func(s *Server) {
		s.policy = policy
	}
}

// New builds the server. Without WithDataset the seeded dataset is used.
func New(cfg config.MockServer, opts ...Option) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("mock admin API requires a JWT secret")
	}
	s := &Server{
		cfg:      cfg,
		sessions: newSessions(),
		faults:   newFaults(),
		policy: LockoutPolicy{
			Attempts: DefaultLockoutAttempts,
			Window:   DefaultLockoutWindow,
			Duration: DefaultLockoutDuration,
		},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = metrics.NewServer(s.registry)
	s.lockout = newLockout(s.policy, s.now)
	if s.data == nil {
		d, err := SeedDataset(s.now)
		if err != nil {
			return nil, err
		}
		s.data = d
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Dataset exposes the backing data.
func (s *Server) Dataset() *Dataset {
	return s.data
}

// Registry returns the registry holding the server metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// RevokeSessions logs every session out, so the next authenticated request
// of each client gets a 401.
func (s *Server) RevokeSessions() {
	n := s.sessions.clear()
	for range n {
		s.metrics.DecrementActiveSessions()
	}
	s.logger.Info("all sessions revoked", "count", n)
}

// FailNext makes the next times requests to path (relative to BasePath)
// answer status before any other processing.
func (s *Server) FailNext(path string, status, times int) {
	s.faults.add(path, status, times)
}

// Hits returns how many requests reached path (relative to BasePath).
func (s *Server) Hits(path string) int {
	return s.faults.hits(path)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recovery(s.logger))
	r.Use(requestLogger(s.logger, s.metrics))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route(BasePath, func(r chi.Router) {
		r.Use(bodyLimit(maxBodyBytes))
		r.Use(requireJSON)
		r.Use(s.faults.middleware)
		if s.cfg.Latency > 0 {
			r.Use(latency(s.cfg.Latency))
		}

		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/logout", s.handleLogout)

			r.Get("/store", s.handleGetStore)
			r.Post("/store", s.handleCreateStore)
			r.Put("/store", s.handleUpdateStore)
			r.Delete("/store", s.handleDeleteStore)

			r.Get("/mobile", s.handleGetMobile)
			r.Post("/mobile", s.handleCreateMobile)
			r.Put("/mobile", s.handleUpdateMobile)
			r.Delete("/mobile", s.handleDeleteMobile)
			r.Get("/mobile/store", s.handleGetUserStores)
			r.Put("/mobile/store", s.handleLinkStore)
			r.Delete("/mobile/store", s.handleUnlinkStore)
			r.Post("/mobile/by-ids", s.handleUsersByIDs)

			r.Get("/support", s.handleGetSupport)
			r.Post("/support", s.handleCreateSupport)
			r.Put("/support", s.handleUpdateSupport)
			r.Delete("/support", s.handleDeleteSupport)

			r.Get("/partners", s.handleListPartners)
			r.Post("/partners", s.handleCreatePartner)
			r.Get("/partners/{key}", s.handleGetPartner)
			r.Put("/partners/{key}", s.handleUpdatePartner)
			r.Delete("/partners/{key}", s.handleDeletePartner)

			r.Get("/states", s.handleStates)
			r.Get("/cities", s.handleCities)
			r.Get("/segments", s.handleSegments)
			r.Get("/sizes", s.handleSizes)

			r.Get("/dashboard/stats", s.handleDashboardStats)
			r.Get("/dashboard/activity", s.handleDashboardActivity)
			r.Get("/reports/summary", s.handleReportSummary)
			r.Get("/reports/stores", s.handleStoresReport)
		})
	})
	return r
}

func latency(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type fault struct {
	status    int
	remaining int
}

// faults counts requests per path and injects scripted failures.
type faults struct {
	mu      sync.Mutex
	pending map[string]*fault
	counts  map[string]int
}

func newFaults() *faults {
	return &faults{pending: make(map[string]*fault), counts: make(map[string]int)}
}

func (f *faults) add(path string, status, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[path] = &fault{status: status, remaining: times}
}

func (f *faults) hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[path]
}

// next records a hit on path and returns the status to inject, or 0.
func (f *faults) next(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[path]++
	ft, ok := f.pending[path]
	if !ok {
		return 0
	}
	ft.remaining--
	if ft.remaining <= 0 {
		delete(f.pending, path)
	}
	return ft.status
}

func (f *faults) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, BasePath)
		if status := f.next(path); status != 0 {
			writeError(w, status, apierror.Code(strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))), "Falha simulada")
			return
		}
		next.ServeHTTP(w, r)
	})
}

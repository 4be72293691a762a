// Package metrics defines the Prometheus collectors for the admin API client
// and the mock admin server.
package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Client holds the collectors recorded by the HTTP client and its pipeline.
type Client struct {
	Requests        *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
	Retries         *prometheus.CounterVec
	Reauth          *prometheus.CounterVec
	PendingRequests prometheus.Gauge
	CircuitOpen     prometheus.Gauge
}

// NewClient registers the client collectors on reg. A nil reg leaves them
// unregistered, which keeps parallel tests from colliding.
func NewClient(reg prometheus.Registerer) *Client {
	f := promauto.With(reg)
	return &Client{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "margem_admin_api_requests_total",
			Help: "Total number of admin API requests, labeled by method and normalized outcome code",
		}, []string{"method", "code"}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "margem_admin_api_request_duration_seconds",
			Help:    "Latency of admin API requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		Retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "margem_admin_api_retries_total",
			Help: "Total number of transient-failure retries, labeled by reason",
		}, []string{"reason"}),
		Reauth: f.NewCounterVec(prometheus.CounterOpts{
			Name: "margem_admin_api_reauth_total",
			Help: "Total number of re-authentication sequences, labeled by outcome",
		}, []string{"outcome"}),
		PendingRequests: f.NewGauge(prometheus.GaugeOpts{
			Name: "margem_admin_api_pending_requests",
			Help: "Requests waiting for an in-flight re-authentication",
		}),
		CircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "margem_admin_api_circuit_open",
			Help: "1 when retries are suspended by the circuit breaker",
		}),
	}
}

func (m *Client) ObserveRequest(method, code string, durationSeconds float64) {
	m.Requests.WithLabelValues(method, code).Inc()
	m.RequestLatency.WithLabelValues(method).Observe(durationSeconds)
}

func (m *Client) IncrementRetries(reason string) {
	m.Retries.WithLabelValues(reason).Inc()
}

// IncrementReauth records a finished re-authentication sequence.
// outcome is "refreshed" or "logged_out".
func (m *Client) IncrementReauth(outcome string) {
	m.Reauth.WithLabelValues(outcome).Inc()
}

func (m *Client) SetPending(n int) {
	m.PendingRequests.Set(float64(n))
}

func (m *Client) SetCircuitOpen(open bool) {
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}

// Server holds the mock admin server collectors.
type Server struct {
	EndpointLatency *prometheus.HistogramVec
	Logins          *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
}

func NewServer(reg prometheus.Registerer) *Server {
	f := promauto.With(reg)
	return &Server{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "margem_mock_endpoint_latency_seconds",
			Help:    "Latency of mock admin API endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "margem_mock_logins_total",
			Help: "Login attempts against the mock admin API, labeled by result",
		}, []string{"result"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "margem_mock_active_sessions",
			Help: "Sessions issued and not logged out",
		}),
	}
}

func (m *Server) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}

func (m *Server) IncrementLogins(result string) {
	m.Logins.WithLabelValues(result).Inc()
}

func (m *Server) IncrementActiveSessions() {
	m.ActiveSessions.Inc()
}

func (m *Server) DecrementActiveSessions() {
	m.ActiveSessions.Dec()
}

// WriteTextfile dumps every metric gathered by g to path in the Prometheus
// text format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, g)
}


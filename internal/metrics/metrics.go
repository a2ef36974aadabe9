// Package metrics exposes Prometheus metrics and a health endpoint for the
// order gateway.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// Session lifecycle
	LoginsTotal      prometheus.Counter
	LoginFailures    prometheus.Counter
	SessionCacheHits prometheus.Counter
	ExpiryRetries    prometheus.Counter

	// Orders
	OrdersPlaced   prometheus.Counter
	OrdersRejected prometheus.Counter
	OrderSubmitDur prometheus.Histogram

	// Reconciliation
	ReconcileAttempts   prometheus.Counter
	ReconcileUnresolved prometheus.Counter
	ReconcileDur        prometheus.Histogram

	// Resolution
	ResolveCacheHits prometheus.Counter
	ResolveFailures  prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_broker_logins_total",
			Help: "Total broker login attempts",
		}),
		LoginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_broker_login_failures_total",
			Help: "Broker logins rejected or errored",
		}),
		SessionCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_session_cache_hits_total",
			Help: "Calls served from the cached session",
		}),
		ExpiryRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_session_expiry_retries_total",
			Help: "Submissions retried after a session-expiry signal",
		}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_orders_placed_total",
			Help: "Orders accepted by the broker",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_orders_rejected_total",
			Help: "Orders rejected by the broker or structural validation",
		}),
		OrderSubmitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_order_submit_seconds",
			Help:    "End-to-end submit latency including reconciliation",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		ReconcileAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_reconcile_attempts_total",
			Help: "Individual reconciliation polls issued",
		}),
		ReconcileUnresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_reconcile_unresolved_total",
			Help: "Reconciliations that exhausted the attempt budget with unknown status",
		}),
		ReconcileDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_reconcile_seconds",
			Help:    "Time spent discovering the settled order status",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		}),
		ResolveCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_resolve_cache_hits_total",
			Help: "Symbol resolutions served from Redis",
		}),
		ResolveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_resolve_failures_total",
			Help: "Symbol resolutions that matched nothing",
		}),
	}

	prometheus.MustRegister(
		m.LoginsTotal, m.LoginFailures, m.SessionCacheHits, m.ExpiryRetries,
		m.OrdersPlaced, m.OrdersRejected, m.OrderSubmitDur,
		m.ReconcileAttempts, m.ReconcileUnresolved, m.ReconcileDur,
		m.ResolveCacheHits, m.ResolveFailures,
	)
	return m
}

// HealthStatus tracks liveness of the gateway's dependencies.
type HealthStatus struct {
	mu sync.RWMutex

	StartedAt      time.Time
	RedisConnected bool
	SQLiteOK       bool
	LastOrderAt    time.Time
}

// NewHealthStatus creates a health tracker.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// SetRedisConnected updates the Redis liveness flag.
func (h *HealthStatus) SetRedisConnected(ok bool) {
	h.mu.Lock()
	h.RedisConnected = ok
	h.mu.Unlock()
}

// SetSQLiteOK updates the journal liveness flag.
func (h *HealthStatus) SetSQLiteOK(ok bool) {
	h.mu.Lock()
	h.SQLiteOK = ok
	h.mu.Unlock()
}

// MarkOrder records the time of the last accepted order.
func (h *HealthStatus) MarkOrder() {
	h.mu.Lock()
	h.LastOrderAt = time.Now()
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Redis and SQLite are both optional accelerants; the gateway itself is
	// healthy as long as it is serving.
	overall := "healthy"
	if !h.RedisConnected || !h.SQLiteOK {
		overall = "degraded"
	}

	lastOrder := ""
	if !h.LastOrderAt.IsZero() {
		lastOrder = h.LastOrderAt.Format(time.RFC3339)
	}

	status := struct {
		Status         string `json:"status"`
		Uptime         string `json:"uptime"`
		RedisConnected bool   `json:"redis_connected"`
		SQLiteOK       bool   `json:"sqlite_ok"`
		LastOrderAt    string `json:"last_order_at,omitempty"`
	}{
		Status:         overall,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected: h.RedisConnected,
		SQLiteOK:       h.SQLiteOK,
		LastOrderAt:    lastOrder,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

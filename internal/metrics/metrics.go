package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the charting engine.
type Metrics struct {
	ObservationsTotal prometheus.Counter
	UnchangedTotal    prometheus.Counter
	ColumnsTotal      *prometheus.CounterVec // labels: kind
	ReversalsTotal    prometheus.Counter
	SignalsTotal      *prometheus.CounterVec // labels: side
	PatternsTotal     *prometheus.CounterVec // labels: type
	ProcessDur        prometheus.Histogram
	ObservationLag    prometheus.Gauge

	// Ingest
	WSReconnects     prometheus.Counter
	LateObservations prometheus.Counter

	// Backpressure
	FanoutDropsTotal     *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: channel_name
	ReplayRingOverflow   prometheus.Gauge       // cumulative, sampled from the hub

	// Stores
	RedisWriteDur   prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram

	// Redis circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ObservationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pnfengine_observations_total",
			Help: "Total price observations processed",
		}),
		UnchangedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pnfengine_observations_unchanged_total",
			Help: "Observations that produced no new box",
		}),
		ColumnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pnfengine_columns_total",
			Help: "Total columns opened (by kind)",
		}, []string{"kind"}),
		ReversalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pnfengine_reversals_total",
			Help: "Total reversal columns opened",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pnfengine_signals_total",
			Help: "Total buy/sell signals emitted (by side)",
		}, []string{"side"}),
		PatternsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pnfengine_patterns_total",
			Help: "Total chart patterns recognized (by type)",
		}, []string{"type"}),
		ProcessDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pnfengine_process_duration_seconds",
			Help:    "Chart update plus indicator recompute latency per observation",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		}),
		ObservationLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pnfengine_observation_lag_seconds",
			Help: "Lag between observation timestamp and processing time",
		}),

		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pnfengine_ws_reconnects_total",
			Help: "Total kline stream reconnection attempts",
		}),
		LateObservations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pnfengine_late_observations_total",
			Help: "Observations dropped by the resampler for arriving behind their bucket",
		}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pnfengine_fanout_drops_total",
			Help: "Events dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pnfengine_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),
		ReplayRingOverflow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pnfengine_replay_ring_overflow",
			Help: "Cumulative events aged out of the websocket replay rings",
		}),

		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pnfengine_redis_write_duration_seconds",
			Help:    "Redis write latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pnfengine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pnfengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pnfengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pnfengine_redis_buffered_writes_total",
			Help: "Writes buffered locally during Redis circuit breaker open state",
		}),
	}

	prometheus.MustRegister(
		m.ObservationsTotal,
		m.UnchangedTotal,
		m.ColumnsTotal,
		m.ReversalsTotal,
		m.SignalsTotal,
		m.PatternsTotal,
		m.ProcessDur,
		m.ObservationLag,
		m.WSReconnects,
		m.LateObservations,
		m.FanoutDropsTotal,
		m.ChannelSaturationPct,
		m.ReplayRingOverflow,
		m.RedisWriteDur,
		m.SQLiteCommitDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedWrites,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	LiveSource          bool      `json:"live_source"`
	WSConnected         bool      `json:"ws_connected"`
	LastObservationTime time.Time `json:"last_observation_time"`
	RedisConnected      bool      `json:"redis_connected"`
	SQLiteOK            bool      `json:"sqlite_ok"`
	Symbols             []string  `json:"symbols"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

// SetLiveSource marks whether the engine runs on a live stream. WS
// connectivity only degrades health for live sources.
func (h *HealthStatus) SetLiveSource(v bool) {
	h.mu.Lock()
	h.LiveSource = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastObservationTime(t time.Time) {
	h.mu.Lock()
	h.LastObservationTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSymbols(symbols []string) {
	h.mu.Lock()
	h.Symbols = symbols
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.RedisConnected || !h.SQLiteOK || (h.LiveSource && !h.WSConnected) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	obsAge := ""
	if !h.LastObservationTime.IsZero() {
		obsAge = time.Since(h.LastObservationTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status              string   `json:"status"`
		Uptime              string   `json:"uptime"`
		LiveSource          bool     `json:"live_source"`
		WSConnected         bool     `json:"ws_connected"`
		LastObservationTime string   `json:"last_observation_time"`
		ObservationAge      string   `json:"observation_age"`
		RedisConnected      bool     `json:"redis_connected"`
		RedisLatencyMs      float64  `json:"redis_latency_ms"`
		SQLiteOK            bool     `json:"sqlite_ok"`
		SQLiteLatencyMs     float64  `json:"sqlite_latency_ms"`
		Symbols             []string `json:"symbols"`
		LastCheckAt         string   `json:"last_check_at"`
	}{
		Status:              overallStatus,
		Uptime:              time.Since(h.StartedAt).Round(time.Second).String(),
		LiveSource:          h.LiveSource,
		WSConnected:         h.WSConnected,
		LastObservationTime: h.LastObservationTime.Format(time.RFC3339),
		ObservationAge:      obsAge,
		RedisConnected:      h.RedisConnected,
		RedisLatencyMs:      h.RedisLatencyMs,
		SQLiteOK:            h.SQLiteOK,
		SQLiteLatencyMs:     h.SQLiteLatencyMs,
		Symbols:             h.Symbols,
		LastCheckAt:         h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
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

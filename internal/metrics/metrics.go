// Package metrics holds the Prometheus instrumentation for the
// analyzer: per-symbol throughput, chart-update latency, and the
// health of the downstream persistence and fan-out layers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the analyzer registers.
type Metrics struct {
	CandlesProcessed  prometheus.Counter
	TicksProcessed    prometheus.Counter
	ChartUpdateDur    prometheus.Histogram
	ControllersActive prometheus.Gauge
	DivergencesFound  *prometheus.CounterVec
	RejectionsFound   *prometheus.CounterVec
	UnknownSymbol     *prometheus.CounterVec

	WSClients    prometheus.Gauge
	WSFanoutDrop prometheus.Counter
	WSHeartbeats prometheus.Counter

	RedisCircuitState prometheus.Gauge
	RedisCircuitTrips prometheus.Counter

	WSReconnects prometheus.Counter
}

// New creates and registers every analyzer metric against the default
// Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		CandlesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_candles_processed_total",
			Help: "Total candles appended to a controller's log",
		}),
		TicksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_ticks_processed_total",
			Help: "Total level-one quotes folded into tick candles",
		}),
		ChartUpdateDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analyzer_chart_update_seconds",
			Help:    "Chart.Update wall-clock latency",
			Buckets: prometheus.DefBuckets,
		}),
		ControllersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analyzer_controllers_active",
			Help: "Number of symbols currently owned by the dispatcher",
		}),
		DivergencesFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_divergences_found_total",
			Help: "Divergences detected, by trend",
		}, []string{"trend"}),
		RejectionsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_rejections_found_total",
			Help: "Support/resistance rejections detected, by trend",
		}, []string{"trend"}),
		UnknownSymbol: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_unknown_symbol_events_total",
			Help: "Stream events dropped for a symbol with no controller",
		}, []string{"event"}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analyzer_ws_clients",
			Help: "Currently connected WebSocket clients",
		}),
		WSFanoutDrop: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_ws_fanout_drops_total",
			Help: "Client sends dropped because a client's send buffer was full",
		}),
		WSHeartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_ws_heartbeats_total",
			Help: "Heartbeat frames sent to clients",
		}),

		RedisCircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analyzer_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_provider_ws_reconnects_total",
			Help: "Times the live provider re-established its broker WebSocket",
		}),
	}

	prometheus.MustRegister(
		m.CandlesProcessed,
		m.TicksProcessed,
		m.ChartUpdateDur,
		m.ControllersActive,
		m.DivergencesFound,
		m.RejectionsFound,
		m.UnknownSymbol,
		m.WSClients,
		m.WSFanoutDrop,
		m.WSHeartbeats,
		m.RedisCircuitState,
		m.RedisCircuitTrips,
		m.WSReconnects,
	)
	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

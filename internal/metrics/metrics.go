package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DispatchTotal counts finished dispatches by response mode and outcome.
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiproxy_dispatch_total",
			Help: "Dispatches to the inference endpoint by response mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiproxy_stream_events_total",
			Help: "Event-stream lines decoded, by event kind",
		},
		[]string{"kind"},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiproxy_gateway_rate_limited_total",
			Help: "Gateway requests rejected by the inbound rate limiter",
		},
		[]string{"scope"},
	)

	RelayConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aiproxy_relay_connections",
			Help: "Open WebSocket relay sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(DispatchTotal)
	prometheus.MustRegister(StreamEventsTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(RelayConnections)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

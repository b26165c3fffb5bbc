package rpcclient

import (
	"github.com/nspcc-dev/subgo/pkg/txstatus"
	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	outcomeOK             = "ok"
	outcomeNodeError      = "node_error"
	outcomeTransportError = "transport_error"
)

// Metrics used in monitoring service.
var (
	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of RPC requests sent to the node",
			Name:      "rpc_requests_total",
			Namespace: "subgo",
		},
		[]string{"method", "outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Help:      "RPC request duration",
			Name:      "rpc_request_duration_seconds",
			Namespace: "subgo",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	txStatusCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of transaction status events by state",
			Name:      "tx_status_total",
			Namespace: "subgo",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(
		requestCounter,
		requestDuration,
		txStatusCounter,
	)
}

func countRequest(method, outcome string) {
	requestCounter.WithLabelValues(method, outcome).Inc()
}

func countEvents(evs []txstatus.Event) {
	for _, ev := range evs {
		txStatusCounter.WithLabelValues(ev.State.String()).Inc()
	}
}

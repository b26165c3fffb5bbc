package metrics

import (
	"net/http"
	"net/http/pprof"

	"github.com/nspcc-dev/subgo/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewPrometheusService creates a service exposing the client metrics
// registered in the default Prometheus registry at /metrics.
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	h := promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:      zap.NewStdLog(log),
			ErrorHandling: promhttp.ContinueOnError,
		}))
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	return NewService("Prometheus", servers(cfg, mux), cfg, log)
}

// NewPprofService creates a service exposing runtime profiles at
// /debug/pprof/.
func NewPprofService(cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return NewService("Pprof", servers(cfg, mux), cfg, log)
}

// servers makes one server per configured address, all sharing h.
func servers(cfg config.BasicService, h http.Handler) []*http.Server {
	srvs := make([]*http.Server, 0, len(cfg.Addresses))
	for _, addr := range cfg.Addresses {
		srvs = append(srvs, &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: readHeaderTimeout,
		})
	}
	return srvs
}

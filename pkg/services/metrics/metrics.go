/*
Package metrics implements HTTP services exposing client metrics (Prometheus)
and runtime profiling data (pprof).
*/
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nspcc-dev/subgo/pkg/config"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const readHeaderTimeout = 5 * time.Second

// Service serves metrics.
type Service struct {
	http        []*http.Server
	listeners   []net.Listener
	config      config.BasicService
	log         *zap.Logger
	serviceType string
	started     *atomic.Bool
}

// NewService configures logger and returns new service instance.
func NewService(name string, httpServers []*http.Server, cfg config.BasicService, log *zap.Logger) *Service {
	return &Service{
		http:        httpServers,
		config:      cfg,
		serviceType: name,
		log:         log.With(zap.String("service", name)),
		started:     atomic.NewBool(false),
	}
}

// Start runs http service with the exposed endpoint on the configured port.
// Listening errors are returned, serving happens in background.
func (ms *Service) Start() error {
	if !ms.config.Enabled {
		ms.log.Info("service hasn't started since it's disabled")
		return nil
	}
	if !ms.started.CompareAndSwap(false, true) {
		ms.log.Info("service already started")
		return nil
	}
	for _, srv := range ms.http {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			ms.closeListeners()
			ms.started.Store(false)
			return fmt.Errorf("%s service can't listen on %s: %w", ms.serviceType, srv.Addr, err)
		}
		ms.listeners = append(ms.listeners, ln)
	}
	for i, srv := range ms.http {
		ln := ms.listeners[i]
		ms.log.Info("starting service", zap.String("endpoint", ln.Addr().String()))
		go func(srv *http.Server) {
			err := srv.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				ms.log.Error("failed to start service", zap.String("endpoint", ln.Addr().String()), zap.Error(err))
			}
		}(srv)
	}
	return nil
}

// Addrs returns actual listening addresses of the started service.
func (ms *Service) Addrs() []net.Addr {
	res := make([]net.Addr, 0, len(ms.listeners))
	for _, ln := range ms.listeners {
		res = append(res, ln.Addr())
	}
	return res
}

func (ms *Service) closeListeners() {
	for _, ln := range ms.listeners {
		_ = ln.Close()
	}
	ms.listeners = nil
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if !ms.started.CompareAndSwap(true, false) {
		return
	}
	for _, srv := range ms.http {
		ms.log.Info("shutting down service", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			ms.log.Error("can't shut service down", zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}
	ms.listeners = nil
	_ = ms.log.Sync()
}

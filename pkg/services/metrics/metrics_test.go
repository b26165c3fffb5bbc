package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/nspcc-dev/subgo/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func get(t *testing.T, url string) string {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestPrometheusService(t *testing.T) {
	cfg := config.BasicService{Enabled: true, Addresses: []string{"127.0.0.1:0", "127.0.0.1:0"}}
	s := NewPrometheusService(cfg, zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	defer s.ShutDown()

	addrs := s.Addrs()
	require.Equal(t, 2, len(addrs))
	for _, a := range addrs {
		body := get(t, "http://"+a.String()+"/metrics")
		require.True(t, strings.Contains(body, "go_goroutines"))
	}
	s.ShutDown()
	_, err := http.Get("http://" + addrs[0].String() + "/metrics")
	require.Error(t, err)
}

func TestPprofService(t *testing.T) {
	cfg := config.BasicService{Enabled: true, Addresses: []string{"127.0.0.1:0"}}
	s := NewPprofService(cfg, zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	defer s.ShutDown()
	body := get(t, "http://"+s.Addrs()[0].String()+"/debug/pprof/")
	require.True(t, strings.Contains(body, "goroutine"))
}

func TestDisabledService(t *testing.T) {
	s := NewPrometheusService(config.BasicService{Addresses: []string{"127.0.0.1:0"}}, zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	require.Equal(t, 0, len(s.Addrs()))
	s.ShutDown()

	s = NewPprofService(config.BasicService{Enabled: true}, nil)
	require.NoError(t, s.Start())
	require.Equal(t, 0, len(s.Addrs()))
	s.ShutDown()
}

func TestPrometheusNotFound(t *testing.T) {
	cfg := config.BasicService{Enabled: true, Addresses: []string{"127.0.0.1:0"}}
	s := NewPrometheusService(cfg, zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	defer s.ShutDown()

	resp, err := http.Get("http://" + s.Addrs()[0].String() + "/debug/pprof/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServiceListenError(t *testing.T) {
	s := NewPrometheusService(config.BasicService{Enabled: true, Addresses: []string{"bad address"}}, zaptest.NewLogger(t))
	require.Error(t, s.Start())
	s.ShutDown()
}

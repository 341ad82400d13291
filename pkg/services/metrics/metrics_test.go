package metrics

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/nspcc-dev/cmtree/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func getBody(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestPrometheusService(t *testing.T) {
	cfg := config.BasicService{
		Enabled:   true,
		Addresses: []string{"127.0.0.1:0"},
	}
	svc := NewPrometheusService(cfg, zaptest.NewLogger(t))
	require.NotNil(t, svc)
	require.NoError(t, svc.Start())
	t.Cleanup(svc.ShutDown)

	code, body := getBody(t, fmt.Sprintf("http://%s/metrics", svc.Addresses()[0]))
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "go_goroutines")

	// Starting a running service is a no-op.
	require.NoError(t, svc.Start())
}

func TestPprofService(t *testing.T) {
	cfg := config.BasicService{
		Enabled:   true,
		Addresses: []string{"127.0.0.1:0"},
	}
	svc := NewPprofService(cfg, zaptest.NewLogger(t))
	require.NotNil(t, svc)
	require.NoError(t, svc.Start())
	t.Cleanup(svc.ShutDown)

	code, body := getBody(t, fmt.Sprintf("http://%s/debug/pprof/", svc.Addresses()[0]))
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "goroutine")
}

func TestDisabledService(t *testing.T) {
	svc := NewPrometheusService(config.BasicService{}, zaptest.NewLogger(t))
	require.NotNil(t, svc)
	require.NoError(t, svc.Start())
	svc.ShutDown()
}

func TestServiceStartErrors(t *testing.T) {
	cfg := config.BasicService{
		Enabled:   true,
		Addresses: []string{"127.0.0.1:-1"},
	}
	svc := NewPrometheusService(cfg, zaptest.NewLogger(t))
	require.NotNil(t, svc)
	require.Error(t, svc.Start())
}

func TestNilLogger(t *testing.T) {
	require.Nil(t, NewPrometheusService(config.BasicService{}, nil))
	require.Nil(t, NewPprofService(config.BasicService{}, nil))
}

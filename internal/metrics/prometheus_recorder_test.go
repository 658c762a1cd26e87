package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveModuleCompile("script", 12*time.Millisecond, true)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncBuildOutcome(BuildOutcomeSuccess)
	pr.IncRecompile(ResultSuccess)
	pr.IncRecompile(ResultFailed)
	pr.IncRemoteFetch(FetchNetwork)
	pr.IncRemoteFetch(FetchCached)
	pr.IncRemoteFetch(FetchCached)
	pr.IncEventsDropped("debounced")
	pr.SetModules(42)
	pr.SetLiveReloadClients(2)

	require.Equal(t, 2.0, testutil.ToFloat64(pr.remoteFetches.WithLabelValues(string(FetchCached))))
	require.Equal(t, 1.0, testutil.ToFloat64(pr.recompiles.WithLabelValues(string(ResultFailed))))
	require.Equal(t, 42.0, testutil.ToFloat64(pr.modules))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncRecompile(ResultSuccess)
	pr.SetModules(1)
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncBuildOutcome(BuildOutcomeFailed)

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `tails_build_outcomes_total{outcome="failed"} 1`))
}

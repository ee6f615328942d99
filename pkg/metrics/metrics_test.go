package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCollectors(t *testing.T) {
	ReattachTotal.WithLabelValues("update", "ok").Inc()
	SessionsTotal.WithLabelValues("lang", "done").Inc()
	PhaseTransitionsTotal.WithLabelValues("flashing").Inc()
	FlashProgress.Set(45)

	for _, name := range []string{
		"drcflash_reattach_total",
		"drcflash_sessions_total",
		"drcflash_phase_transitions_total",
		"drcflash_flash_progress_percent",
	} {
		assert.GreaterOrEqual(t, testutil.CollectAndCount(Registry, name), 1, name)
	}
	assert.Equal(t, float64(45), testutil.ToFloat64(FlashProgress))
}

func TestServerExposesMetrics(t *testing.T) {
	ReattachTotal.WithLabelValues("active", "noop").Inc()

	srv := httptest.NewServer(NewServer("").Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + Endpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `drcflash_reattach_total{result="noop",target="active"}`)
}

package syncservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwgray1010/PawCoin/internal/api"
	"github.com/jwgray1010/PawCoin/internal/config"
	"github.com/jwgray1010/PawCoin/internal/health"
)

func TestCalculateStartupHealthTimeout(t *testing.T) {
	assert.Equal(t, 30, calculateStartupHealthTimeout(1))
	assert.Equal(t, 30, calculateStartupHealthTimeout(15))
	assert.Equal(t, 40, calculateStartupHealthTimeout(20))
}

func TestStartupWiring(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.DataFile = filepath.Join(t.TempDir(), "anchors.json")
	log := zerolog.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	set, err := initDependencies(ctx, cfg, log)
	require.NoError(t, err)
	defer set.Close()

	svcHealth := startHealthCheckers(ctx, cfg, log, set)
	require.NoError(t, waitUntilHealthy(ctx, cfg, svcHealth))

	hub := api.NewHub(log)
	defer hub.Close()
	srv := httptest.NewServer(buildRouter(set, hub, svcHealth.IsHealthy, cfg, log))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/anchors", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer "+cfg.APIToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWaitUntilHealthyHonoursCancel(t *testing.T) {
	cfg := config.NewForTesting()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := health.NewServiceHealthChecker(zerolog.Nop())
	assert.ErrorIs(t, waitUntilHealthy(ctx, cfg, svc), context.Canceled)
}

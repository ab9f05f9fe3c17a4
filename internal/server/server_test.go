package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklet/chronicle/internal/config"
	"github.com/inklet/chronicle/internal/engine"
	"github.com/inklet/chronicle/internal/storage/sqlite"
	"github.com/inklet/chronicle/web/handlers"
)

type cannedGenerator struct {
	response string
}

func (g *cannedGenerator) Complete(context.Context, string) (string, error) {
	return g.response, nil
}

func (g *cannedGenerator) GetModel() string { return "canned" }

func startTestServer(t *testing.T) string {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Engine: config.EngineConfig{
			Workers:           1,
			QueueSize:         8,
			ExtractionTimeout: 5 * time.Second,
			SummaryWindow:     5,
		},
		Scoring:   config.DefaultScoring(),
		Selection: config.DefaultSelection(),
		Cameo:     config.DefaultCameo(),
		Security:  config.SecurityConfig{Mode: "development"},
	}

	gen := &cannedGenerator{response: `{
		"summary": "林昭入门。",
		"characters": [{"name": "林昭", "role": "PROTAGONIST", "influence_score": 90, "screen_time": 0.8, "return_probability": 1.0}]
	}`}
	eng, err := engine.New(cfg, store, gen, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	addr, _, err := Start(ctx, cfg, store, eng)
	require.NoError(t, err)
	return addr
}

func TestServer_HealthAndStatusRoutes(t *testing.T) {
	addr := startTestServer(t)
	base := "http://" + addr

	resp, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, err = http.Get(base + "/api/manuscripts/ms-1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_IngestThenPlanOverHTTP(t *testing.T) {
	addr := startTestServer(t)
	base := "http://" + addr

	resp, err := http.Post(base+"/api/manuscripts/ms-1/chapters", "application/json",
		strings.NewReader(`{"chapter": 1, "text": "第一章正文", "sync": true}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(base+"/api/manuscripts/ms-1/plan", "application/json",
		strings.NewReader(`{"chapter": 2, "title": "初入山门"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result engine.PlanResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.NotNil(t, result.Context)
	require.Len(t, result.Selection.Characters, 1)
	assert.Equal(t, "林昭", result.Selection.Characters[0].Name)

	var stats handlers.StatsResponse
	resp, err = http.Get(fmt.Sprintf("%s/api/manuscripts/%s/stats", base, "ms-1"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Characters)
	assert.Equal(t, 1, stats.Summaries)
}

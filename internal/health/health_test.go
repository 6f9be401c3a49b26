package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okPing(ctx context.Context) error { return nil }

func TestLivenessHandler(t *testing.T) {
	hc := NewHealthCheck(nil, time.Hour, nil, zap.NewNop())
	defer hc.Stop()

	rec := httptest.NewRecorder()
	hc.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadinessHandler_AllHealthy(t *testing.T) {
	hc := NewHealthCheck(map[string]Pinger{
		"ledger": PingFunc(okPing),
		"store":  PingFunc(okPing),
	}, time.Hour, nil, zap.NewNop())
	defer hc.Stop()

	rec := httptest.NewRecorder()
	hc.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, map[string]string{"ledger": "healthy", "store": "healthy"}, resp.Checks)
}

func TestReadinessHandler_DependencyDown(t *testing.T) {
	hc := NewHealthCheck(map[string]Pinger{
		"ledger": PingFunc(okPing),
		"store": PingFunc(func(ctx context.Context) error {
			return errors.New("server selection timeout")
		}),
	}, time.Hour, nil, zap.NewNop())
	defer hc.Stop()

	rec := httptest.NewRecorder()
	hc.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "unhealthy", resp.Checks["store"])
	assert.Equal(t, "healthy", resp.Checks["ledger"])
	assert.Contains(t, resp.Error, "server selection timeout")
	assert.False(t, hc.IsReady())
}

func TestReadinessHandler_RecoversWithoutWaiting(t *testing.T) {
	var healthy atomic.Bool
	hc := NewHealthCheck(map[string]Pinger{
		"store": PingFunc(func(ctx context.Context) error {
			if healthy.Load() {
				return nil
			}
			return errors.New("down")
		}),
	}, time.Hour, nil, zap.NewNop())
	defer hc.Stop()

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		hc.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		return rec.Code == http.StatusServiceUnavailable
	}, time.Second, 10*time.Millisecond)

	healthy.Store(true)

	rec := httptest.NewRecorder()
	hc.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, hc.IsReady())
}

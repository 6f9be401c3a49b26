// Package health provides health check endpoints for the data API.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/vmskonakanchi/ymts-crud-api/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// Pinger is a dependency whose reachability decides readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthCheck manages health check functionality.
type HealthCheck struct {
	dependencies  map[string]Pinger
	metrics       *metrics.Metrics
	logger        *zap.Logger
	mu            sync.RWMutex
	ready         bool
	checks        map[string]string
	lastErr       error
	lastCheck     time.Time
	checkInterval time.Duration
	checkTimeout  time.Duration
	done          chan struct{}
	stopOnce      sync.Once
}

// NewHealthCheck creates a new HealthCheck and starts checking the
// dependencies in the background every checkInterval.
func NewHealthCheck(dependencies map[string]Pinger, checkInterval time.Duration, m *metrics.Metrics, logger *zap.Logger) *HealthCheck {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}

	hc := &HealthCheck{
		dependencies:  dependencies,
		metrics:       m,
		logger:        logger,
		checks:        make(map[string]string),
		checkInterval: checkInterval,
		checkTimeout:  5 * time.Second,
		done:          make(chan struct{}),
	}

	go hc.backgroundCheck()

	return hc
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{Status: statusHealthy})
}

// ReadinessHandler handles GET /ready requests.
// Returns 200 OK once the ledger, document store and cache all answer.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hc.mu.RLock()
	isReady := hc.ready
	checks := copyChecks(hc.checks)
	hc.mu.RUnlock()

	if !isReady {
		// fresh check so a recovered dependency does not wait for the ticker
		ctx, cancel := context.WithTimeout(r.Context(), hc.checkTimeout)
		defer cancel()
		hc.check(ctx)

		hc.mu.RLock()
		isReady = hc.ready
		checks = copyChecks(hc.checks)
		lastErr := hc.lastErr
		hc.mu.RUnlock()

		if !isReady {
			resp := ReadinessResponse{Status: "not_ready", Checks: checks}
			if lastErr != nil {
				resp.Error = lastErr.Error()
			}
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, ReadinessResponse{Status: "ready", Checks: checks})
}

// check pings every dependency concurrently and records the result.
func (hc *HealthCheck) check(ctx context.Context) {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		checks = make(map[string]string, len(hc.dependencies))
	)

	for _, name := range sortedNames(hc.dependencies) {
		name, dep := name, hc.dependencies[name]
		g.Go(func() error {
			err := dep.Ping(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[name] = statusUnhealthy
				hc.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
				return err
			}
			checks[name] = statusHealthy
			return nil
		})
	}
	err := g.Wait()

	hc.mu.Lock()
	hc.ready = err == nil
	hc.checks = checks
	hc.lastErr = err
	hc.lastCheck = time.Now()
	hc.mu.Unlock()

	hc.metrics.SetHealthStatus(err == nil)
}

// backgroundCheck performs periodic health checks.
func (hc *HealthCheck) backgroundCheck() {
	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), hc.checkTimeout)
		hc.check(ctx)
		cancel()

		select {
		case <-hc.done:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the background checks.
func (hc *HealthCheck) Stop() {
	hc.stopOnce.Do(func() { close(hc.done) })
}

// IsReady returns the current readiness status.
func (hc *HealthCheck) IsReady() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.ready
}

// SetReady sets the readiness status (for testing).
func (hc *HealthCheck) SetReady(ready bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.ready = ready
}

func sortedNames(deps map[string]Pinger) []string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func copyChecks(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

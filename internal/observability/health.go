package observability

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the health of the daemon.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheckFunc reports the readiness of a single component.
type HealthCheckFunc func() error

var (
	healthChecks   = make(map[string]HealthCheckFunc)
	healthChecksMu sync.RWMutex
)

// RegisterHealthCheck registers a named component check. Checks run on every
// readiness probe, so they should be cheap.
func RegisterHealthCheck(name string, check HealthCheckFunc) {
	healthChecksMu.Lock()
	defer healthChecksMu.Unlock()
	healthChecks[name] = check
}

// HealthHandler reports liveness. It always returns 200 while the process
// is up.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ReadinessHandler runs all registered checks and reports 503 if any fail.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	healthChecksMu.RLock()
	defer healthChecksMu.RUnlock()

	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string),
	}

	httpStatus := http.StatusOK
	for name, check := range healthChecks {
		if err := check(); err != nil {
			status.Checks[name] = err.Error()
			status.Status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			status.Checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(status)
}

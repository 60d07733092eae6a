package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus is the body served on /health and /ready.
type HealthStatus struct {
	Status     string            `json:"status"` // "healthy", "unhealthy", "ready", "not_ready"
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
	StartTime  time.Time         `json:"-"`
}

var (
	healthChecker = &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
)

// ComponentHealth tracks the health of a single component
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

// HealthChecker aggregates per-component health reported by the serve
// command as subsystems come up.
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startTime  time.Time
	version    string
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// RegisterComponent registers a component for health checking
func RegisterComponent(name string, healthy bool, message string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	healthChecker.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

// UpdateComponent updates the health status of a component
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message) // Same implementation
}

// GetHealth returns the overall health status. Any unhealthy component
// makes the whole process unhealthy.
func GetHealth() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()

	status := "healthy"
	components := make(map[string]string)

	for name, comp := range healthChecker.components {
		if !comp.Healthy {
			status = "unhealthy"
			components[name] = "unhealthy: " + comp.Message
		} else {
			components[name] = "healthy"
		}
	}

	uptime := time.Since(healthChecker.startTime)

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Version:    healthChecker.version,
		Uptime:     uptime.String(),
		StartTime:  healthChecker.startTime,
	}
}

// GetReadiness reports whether the control plane can serve assignments.
// The store and the container runtime must both be registered and healthy;
// everything else (pool, monitor, alerter) degrades gracefully.
func GetReadiness() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()

	status := "ready"
	message := ""
	components := make(map[string]string)

	criticalComponents := []string{"store", "runtime"}

	for _, name := range criticalComponents {
		if comp, exists := healthChecker.components[name]; exists {
			if !comp.Healthy {
				status = "not_ready"
				message = "waiting for " + name
				components[name] = "not ready: " + comp.Message
			} else {
				components[name] = "ready"
			}
		} else {
			// Component not registered yet
			status = "not_ready"
			message = "waiting for " + name + " initialization"
			components[name] = "not registered"
		}
	}

	uptime := time.Since(healthChecker.startTime)

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    healthChecker.version,
		Uptime:     uptime.String(),
		StartTime:  healthChecker.startTime,
	}
}

// HealthHandler returns an HTTP handler for the /health endpoint
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()

		w.Header().Set("Content-Type", "application/json")

		statusCode := http.StatusOK
		if health.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		_ = json.NewEncoder(w).Encode(health)
	}
}

// ReadyHandler returns an HTTP handler for the /ready endpoint
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()

		w.Header().Set("Content-Type", "application/json")

		statusCode := http.StatusOK
		if readiness.Status != "ready" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		_ = json.NewEncoder(w).Encode(readiness)
	}
}

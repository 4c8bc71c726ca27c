package monitoring

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const HealthStatusOK HealthStatus = "ok"

// SystemHealth represents overall service health
type SystemHealth struct {
	Status     HealthStatus      `json:"status"`
	Service    string            `json:"service"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Uptime     float64           `json:"uptime_seconds"`
	Details    map[string]string `json:"details,omitempty"`
	SystemInfo SystemInfo        `json:"system_info"`
}

// SystemInfo contains process-level information
type SystemInfo struct {
	GoVersion     string  `json:"go_version"`
	NumGoroutines int     `json:"num_goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumCPU        int     `json:"num_cpu"`
}

// HealthMonitor reports uptime and process information for one service
type HealthMonitor struct {
	service   string
	version   string
	startTime time.Time
	details   func() map[string]string
}

// NewHealthMonitor creates a new health monitor. details may be nil.
func NewHealthMonitor(service, version string, details func() map[string]string) *HealthMonitor {
	return &HealthMonitor{
		service:   service,
		version:   version,
		startTime: time.Now(),
		details:   details,
	}
}

// Check builds the current health report
func (h *HealthMonitor) Check() *SystemHealth {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	health := &SystemHealth{
		Status:    HealthStatusOK,
		Service:   h.service,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Seconds(),
		SystemInfo: SystemInfo{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / 1024 / 1024,
			NumCPU:        runtime.NumCPU(),
		},
	}
	if h.details != nil {
		health.Details = h.details()
	}
	return health
}

// HealthHandler returns an HTTP handler serving the health report
func (h *HealthMonitor) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(h.Check()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

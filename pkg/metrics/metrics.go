package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet metrics
	WorkspacesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slipway_workspaces_total",
			Help: "Number of persisted workspaces by lifecycle status",
		},
		[]string{"status"},
	)

	RuntimeWorkspaces = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slipway_runtime_workspaces",
			Help: "Number of workspace containers visible to the runtime",
		},
	)

	// Pool metrics
	PoolWorkspaces = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slipway_pool_workspaces",
			Help: "Pre-warm pool occupancy by entry state",
		},
		[]string{"state"},
	)

	PoolTarget = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slipway_pool_target",
			Help: "Configured pre-warm pool target size",
		},
	)

	PoolSpawnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_pool_spawns_total",
			Help: "Pre-warm launches by the queue maintainer, by result",
		},
		[]string{"result"},
	)

	// Host resource metrics
	HostCPUPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slipway_host_cpu_used_percent",
			Help: "Host CPU usage sampled from /proc/stat deltas",
		},
	)

	HostMemoryPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slipway_host_memory_used_percent",
			Help: "Host memory usage sampled from /proc/meminfo",
		},
	)

	HostDiskPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slipway_host_disk_used_percent",
			Help: "Data directory filesystem usage",
		},
	)

	// Assignment metrics
	AssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_assignments_total",
			Help: "Successful workspace assignments by source (pool or fresh)",
		},
		[]string{"source"},
	)

	AssignmentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_assignment_failures_total",
			Help: "Rejected or failed assignment requests by reason",
		},
		[]string{"reason"},
	)

	StartupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slipway_startup_duration_seconds",
			Help:    "Time from assignment request to first editor response",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120, 180},
		},
	)

	// Health monitoring metrics
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_probes_total",
			Help: "Workspace health probes by result",
		},
		[]string{"result"},
	)

	RecoveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slipway_recoveries_total",
			Help: "Failure recoveries triggered by the health monitor",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slipway_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(WorkspacesTotal)
	prometheus.MustRegister(RuntimeWorkspaces)
	prometheus.MustRegister(PoolWorkspaces)
	prometheus.MustRegister(PoolTarget)
	prometheus.MustRegister(PoolSpawnsTotal)
	prometheus.MustRegister(HostCPUPercent)
	prometheus.MustRegister(HostMemoryPercent)
	prometheus.MustRegister(HostDiskPercent)
	prometheus.MustRegister(AssignmentsTotal)
	prometheus.MustRegister(AssignmentFailures)
	prometheus.MustRegister(StartupDuration)
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(RecoveriesTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// ObserveStartupDuration records one request-to-editor startup measurement.
// Wired as the stats recorder's startup observer so the histogram and the
// persisted startup_ms always come from the same clock.
func ObserveStartupDuration(d time.Duration) {
	StartupDuration.Observe(d.Seconds())
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

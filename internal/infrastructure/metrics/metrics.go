package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Builds
	BuildsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "greenpt_builds_created_total",
			Help: "Total number of builds created",
		},
	)
	BuildStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenpt_build_status_changes_total",
			Help: "Number of build status transitions",
		},
		[]string{"from", "to"},
	)
	ActiveBuilds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "greenpt_builds_active",
			Help: "Current number of active builds",
		},
	)
	BuildDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "greenpt_build_duration_seconds",
			Help:    "Histogram of build durations in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s..512s
		},
	)

	// LLM
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenpt_llm_requests_total",
			Help: "Number of LLM requests by model",
		},
		[]string{"model"},
	)
	LLMRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenpt_llm_retries_total",
			Help: "Number of LLM request retries by reason",
		},
		[]string{"reason"}, // reason: timeout|status
	)
	LLMRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenpt_llm_request_duration_seconds",
			Help:    "Duration of LLM requests",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"model"},
	)

	// Materializer / workspace
	FilesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "greenpt_files_written_total",
			Help: "Generated files written to project workspaces",
		},
	)
	FileFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenpt_file_failures_total",
			Help: "Per-file materialization failures by kind",
		},
		[]string{"kind"}, // kind: traversal|generate|write
	)

	// Lint
	LintRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenpt_lint_runs_total",
			Help: "Number of artifact lint runs by format and result",
		},
		[]string{"format", "result"}, // format: hcl|json|yaml, result: pass|fail
	)

	// Archive
	ArchivesBuilt = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "greenpt_archives_built_total",
			Help: "Zip archives produced for download",
		},
	)

	// Store ops
	StoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenpt_store_ops_total",
			Help: "Storage operations performed",
		},
		[]string{"op"}, // op: get|put|delete|list|count
	)

	// Errors
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenpt_errors_total",
			Help: "Errors encountered in components",
		},
		[]string{"component", "type"},
	)
)

func init() {
	prometheus.MustRegister(
		BuildsCreated,
		BuildStatusChanges,
		ActiveBuilds,
		BuildDurationSeconds,

		LLMRequests,
		LLMRetries,
		LLMRequestDurationSeconds,

		FilesWritten,
		FileFailures,

		LintRuns,
		ArchivesBuilt,
		StoreOps,
		Errors,
	)
}

func StartMetricsServer() {
	http.Handle("/metrics", promhttp.Handler())
	_ = http.ListenAndServe(":2112", nil)
}

// Builds
func IncBuildsCreated() {
	BuildsCreated.Inc()
}

func IncBuildStatusChange(from, to string) {
	BuildStatusChanges.WithLabelValues(from, to).Inc()
}

func SetActiveBuilds(n int) {
	ActiveBuilds.Set(float64(n))
}

func ObserveBuildDuration(d time.Duration) {
	BuildDurationSeconds.Observe(d.Seconds())
}

// LLM
func IncLLMRequest(model string) {
	LLMRequests.WithLabelValues(model).Inc()
}

func IncLLMRetry(reason string) {
	LLMRetries.WithLabelValues(reason).Inc()
}

func ObserveLLMDuration(model string, d time.Duration) {
	LLMRequestDurationSeconds.WithLabelValues(model).Observe(d.Seconds())
}

// Files
func IncFileWritten() {
	FilesWritten.Inc()
}

func IncFileFailure(kind string) {
	FileFailures.WithLabelValues(kind).Inc()
}

// Lint
func IncLintRun(format, result string) {
	LintRuns.WithLabelValues(format, result).Inc()
}

// Archive
func IncArchiveBuilt() {
	ArchivesBuilt.Inc()
}

// Store ops
func IncStoreOp(op string) {
	StoreOps.WithLabelValues(op).Inc()
}

// Errors
func IncError(component, typ string) {
	Errors.WithLabelValues(component, typ).Inc()
}

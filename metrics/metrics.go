package metrics

import (
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "sim_harness"
)

var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testRootsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_roots_total",
		Help:      "Count of executed test roots",
	}, []string{
		"run_id",
		"root",
		"kind",
		"result",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of harness test runs",
	}, []string{
		"run_id",
		"result",
	})

	runRootsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_roots_total",
		Help:      "Total number of test roots in a run",
	}, []string{
		"run_id",
	})

	runRootsPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_roots_passed",
		Help:      "Number of passed test roots in a run",
	}, []string{
		"run_id",
	})

	runRootsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_roots_failed",
		Help:      "Number of failed test roots in a run",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of harness test runs",
	}, []string{
		"run_id",
	})

	matchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "matches_total",
		Help:      "Count of simulated matches run",
	}, []string{
		"result",
	})

	matchDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "match_duration_seconds",
		Help:      "Wall time of the most recent simulated match",
	}, []string{
		"match",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = strings.ReplaceAll(label, " ", "_")
	RecordError(label + "_" + errToLabel(err))
}

// RecordTestRoot records the outcome of one test-root execution.
func RecordTestRoot(runID, root, kind, result string) {
	testRootsTotal.WithLabelValues(runID, root, kind, result).Inc()
}

// RecordRun records the aggregate outcome of a full harness run.
func RecordRun(runID, result string, total, passed, failed int, duration time.Duration) {
	runResults.WithLabelValues(runID, result).Set(1)
	runRootsTotal.WithLabelValues(runID).Add(float64(total))
	runRootsPassed.WithLabelValues(runID).Add(float64(passed))
	runRootsFailed.WithLabelValues(runID).Add(float64(failed))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

// RecordMatch records the outcome of a simulated match.
func RecordMatch(matchNumber string, result string, duration time.Duration) {
	matchesTotal.WithLabelValues(result).Inc()
	matchDuration.WithLabelValues(matchNumber).Set(duration.Seconds())
}

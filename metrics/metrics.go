package metrics

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/suitectl/suitectl/types"
)

const (
	MetricsNamespace = "suitectl"
)

var (
	Debug                bool = true
	validKinds                = []types.OutcomeKind{types.OutcomePassed, types.OutcomeFailed, types.OutcomeBroken, types.OutcomeErrored, types.OutcomeInterrupted}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "units_total",
		Help:      "Count of executed test units",
	}, []string{
		"run_id",
		"unit",
		"status",
	})

	unitDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "unit_duration_seconds",
		Help:      "Wall-clock duration of the last execution of each unit",
	}, []string{
		"run_id",
		"unit",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of orchestration runs",
	}, []string{
		"run_id",
		"result",
	})

	runAssertions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_assertions_total",
		Help:      "Assertion totals per run",
	}, []string{
		"run_id",
		"kind",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of orchestration runs",
	}, []string{
		"run_id",
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
	if Debug {
		slog.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordUnit records the terminal status and duration of one unit execution.
func RecordUnit(runID string, unitID string, kind types.OutcomeKind, duration time.Duration) {
	if !isValidKind(kind) {
		slog.Error("RecordUnit - invalid outcome kind", "kind", kind)
		return
	}
	if Debug {
		slog.Debug("metric inc",
			"m", "units_total",
			"run_id", runID,
			"unit", unitID,
			"status", kind)
	}
	unitsTotal.WithLabelValues(runID, unitID, string(kind)).Inc()
	unitDuration.WithLabelValues(runID, unitID).Set(duration.Seconds())
}

// RecordRun records the summary of a completed run.
func RecordRun(runID string, errorFree bool, passed, failed, broken, errored, interrupted int, duration time.Duration) {
	result := "fail"
	if errorFree {
		result = "pass"
	}
	runResults.WithLabelValues(runID, result).Set(1)
	runAssertions.WithLabelValues(runID, "passed").Add(float64(passed))
	runAssertions.WithLabelValues(runID, "failed").Add(float64(failed))
	runAssertions.WithLabelValues(runID, "broken").Add(float64(broken))
	runAssertions.WithLabelValues(runID, "errored").Add(float64(errored))
	runAssertions.WithLabelValues(runID, "interrupted").Add(float64(interrupted))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidKind(kind types.OutcomeKind) bool {
	return slices.Contains(validKinds, kind)
}

package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	assessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heartguard",
			Name:      "assessments_total",
			Help:      "Single-patient assessments, partitioned by verdict (or error).",
		},
		[]string{"verdict"},
	)

	assessmentSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "heartguard",
			Name:      "assessment_seconds",
			Help:      "Single-patient assessment latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heartguard",
			Name:      "batches_total",
			Help:      "Batch CSV runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	batchRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "heartguard",
			Name:      "batch_rows_total",
			Help:      "Patient rows labelled by batch runs.",
		},
	)

	modelsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "heartguard",
			Name:      "models_loaded",
			Help:      "Models successfully loaded at startup.",
		},
	)

	modelLoadErrors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "heartguard",
			Name:      "model_load_errors",
			Help:      "Models that could not be loaded at startup.",
		},
	)
)

// Register attaches the collectors to reg. Registering twice is harmless.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		assessmentsTotal,
		assessmentSeconds,
		batchesTotal,
		batchRowsTotal,
		modelsLoaded,
		modelLoadErrors,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAssessment records one assessment. verdict is empty for failures.
func ObserveAssessment(verdict string, duration time.Duration) {
	if verdict == "" {
		verdict = OutcomeError
	}
	assessmentsTotal.WithLabelValues(verdict).Inc()
	if duration < 0 {
		duration = 0
	}
	assessmentSeconds.Observe(duration.Seconds())
}

func ObserveBatch(rows int, outcome string) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
		batchRowsTotal.Add(float64(rows))
	}
	batchesTotal.WithLabelValues(outcome).Inc()
}

func SetModelStatus(loaded, failed int) {
	modelsLoaded.Set(float64(loaded))
	modelLoadErrors.Set(float64(failed))
}

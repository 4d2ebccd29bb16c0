package ml

import (
	"context"
	"fmt"
)

const (
	LabelHealthy = 0
	LabelRisk    = 1
)

// Classifier is a fitted binary estimator. Predict returns LabelHealthy or
// LabelRisk for a single row of features.
type Classifier interface {
	Predict(features []float64) (int, error)
}

// ClassifierFunc adapts an ordinary function to the Classifier interface.
type ClassifierFunc func(features []float64) (int, error)

func (f ClassifierFunc) Predict(features []float64) (int, error) {
	return f(features)
}

// PredictAll runs c over rows in order and returns one label per row. ctx is
// checked every 256 rows.
func PredictAll(ctx context.Context, c Classifier, rows [][]float64) ([]int, error) {
	labels := make([]int, len(rows))
	for i, row := range rows {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		label, err := c.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		labels[i] = label
	}
	return labels, nil
}

func checkWidth(features []float64, want int) error {
	if len(features) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(features), want)
	}
	return nil
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func labelFromDecision(decision float64) int {
	if decision > 0 {
		return LabelRisk
	}
	return LabelHealthy
}

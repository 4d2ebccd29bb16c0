package ml

import "fmt"

// Scaler standardises features as (x - mean) / scale before they reach the
// estimator. A zero scale is treated as one, matching a constant training column.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *Scaler) validate(width int) error {
	if len(s.Mean) != width || len(s.Scale) != width {
		return fmt.Errorf("scaler has %d means and %d scales, want %d", len(s.Mean), len(s.Scale), width)
	}
	return nil
}

func (s *Scaler) Transform(features []float64) ([]float64, error) {
	if err := checkWidth(features, len(s.Mean)); err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for i, x := range features {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (x - s.Mean[i]) / scale
	}
	return out, nil
}

type scaled struct {
	scaler *Scaler
	next   Classifier
}

func (s *scaled) Predict(features []float64) (int, error) {
	x, err := s.scaler.Transform(features)
	if err != nil {
		return 0, err
	}
	return s.next.Predict(x)
}

package ml

import "errors"

// LogisticRegression predicts risk when the linear decision function is
// positive, which is the same as a sigmoid probability above one half.
type LogisticRegression struct {
	coef      []float64
	intercept float64
}

type logisticParams struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func NewLogisticRegression(coef []float64, intercept float64) (*LogisticRegression, error) {
	if len(coef) == 0 {
		return nil, errors.New("no coefficients")
	}
	return &LogisticRegression{coef: coef, intercept: intercept}, nil
}

func (lr *LogisticRegression) Predict(features []float64) (int, error) {
	if err := checkWidth(features, len(lr.coef)); err != nil {
		return 0, err
	}
	return labelFromDecision(lr.decision(features)), nil
}

func (lr *LogisticRegression) decision(features []float64) float64 {
	return dot(lr.coef, features) + lr.intercept
}

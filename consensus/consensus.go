// Package consensus turns per-model labels into a single risk verdict.
package consensus

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"heartguard/ml"
	"heartguard/patient"
	"heartguard/registry"
)

type Verdict string

const (
	ElevatedRisk Verdict = "elevated_risk"
	Stable       Verdict = "stable"
)

// Threshold is the share of risk votes that must be exceeded for an elevated
// verdict. A score equal to Threshold is stable.
const Threshold = 0.5

const (
	TextRisk    = "Risk"
	TextHealthy = "Healthy"
)

// Vote is one model's label for one row.
type Vote struct {
	Model string `json:"model"`
	Label int    `json:"label"`
}

// PredictSingle asks every model for a label on row, in registry order. An
// empty model list yields no votes. Prediction errors are returned as-is.
func PredictSingle(models []registry.Model, row []float64) ([]Vote, error) {
	votes := make([]Vote, 0, len(models))
	for _, m := range models {
		label, err := m.Classifier.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		votes = append(votes, Vote{Model: m.Name, Label: label})
	}
	return votes, nil
}

// Score is the fraction of votes carrying the risk label. Callers must not
// pass an empty slice.
func Score(votes []Vote) float64 {
	if len(votes) == 0 {
		panic("consensus: score of an empty vote set")
	}
	risk := 0
	for _, v := range votes {
		if v.Label == ml.LabelRisk {
			risk++
		}
	}
	return float64(risk) / float64(len(votes))
}

func Decide(score float64) Verdict {
	if score > Threshold {
		return ElevatedRisk
	}
	return Stable
}

// LabelText renders a label the way batch reports show it.
func LabelText(label int) string {
	if label == ml.LabelRisk {
		return TextRisk
	}
	return TextHealthy
}

// PredictBatch returns a copy of table with one Risk/Healthy column per model,
// in registry order. It does not add a consensus column. A table that does not
// carry the feature columns fails with patient.ErrSchema.
func PredictBatch(ctx context.Context, models []registry.Model, table *patient.Table) (*patient.Table, error) {
	out := table.Clone()
	if len(models) == 0 {
		return out, nil
	}
	rows, err := table.FeatureRows()
	if err != nil {
		return nil, err
	}

	columns := make([][]string, len(models))
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range models {
		g.Go(func() error {
			labels, err := ml.PredictAll(ctx, m.Classifier, rows)
			if err != nil {
				return fmt.Errorf("%s: %w", m.Name, err)
			}
			values := make([]string, len(labels))
			for r, label := range labels {
				values[r] = LabelText(label)
			}
			columns[i] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, m := range models {
		if err := out.SetColumn(m.Name, columns[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

package consensus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"heartguard/patient"
	"heartguard/registry"
)

var ErrNoModels = errors.New("no models could be loaded")

// NoModelsError carries the load diagnostics that explain an empty registry.
type NoModelsError struct {
	Diagnostics []registry.Diagnostic
}

func (e *NoModelsError) Error() string {
	return fmt.Sprintf("%v (%d load errors)", ErrNoModels, len(e.Diagnostics))
}

func (e *NoModelsError) Unwrap() error {
	return ErrNoModels
}

// Assessment is the consensus over all loaded models for one record.
type Assessment struct {
	Votes   []Vote  `json:"votes"`
	Score   float64 `json:"risk_score"`
	Verdict Verdict `json:"verdict"`
	// Agreement is Score as a rounded percentage.
	Agreement int `json:"agreement_pct"`
}

func (a Assessment) clone() Assessment {
	a.Votes = slices.Clone(a.Votes)
	return a
}

// Engine evaluates records against a loaded Set. Loaded models are immutable,
// so assessments of identical records are memoised.
type Engine struct {
	set    *registry.Set
	memo   *lru.Cache[patient.FeatureVector, Assessment]
	logger *zap.Logger
}

// NewEngine creates an engine over set. memoSize <= 0 disables memoisation.
func NewEngine(set *registry.Set, memoSize int, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{set: set, logger: logger}
	if memoSize > 0 {
		memo, err := lru.New[patient.FeatureVector, Assessment](memoSize)
		if err != nil {
			return nil, fmt.Errorf("create assessment cache: %w", err)
		}
		e.memo = memo
	}
	return e, nil
}

func (e *Engine) Set() *registry.Set {
	return e.set
}

// Assess runs every loaded model on v and applies the decision rule. With no
// models loaded it refuses with a *NoModelsError rather than reporting stable.
func (e *Engine) Assess(v patient.FeatureVector) (Assessment, error) {
	if e.set.Empty() {
		return Assessment{}, &NoModelsError{Diagnostics: e.set.Diagnostics()}
	}
	if e.memo != nil {
		if a, ok := e.memo.Get(v); ok {
			return a.clone(), nil
		}
	}

	votes, err := PredictSingle(e.set.Models(), v.Values())
	if err != nil {
		return Assessment{}, err
	}
	score := Score(votes)
	a := Assessment{
		Votes:     votes,
		Score:     score,
		Verdict:   Decide(score),
		Agreement: int(math.Round(score * 100)),
	}
	e.logger.Debug("assessment",
		zap.Float64("score", score),
		zap.String("verdict", string(a.Verdict)),
		zap.Int("models", len(votes)))

	if e.memo != nil {
		e.memo.Add(v, a.clone())
	}
	return a, nil
}

// Batch labels every row of table with each loaded model. See PredictBatch.
func (e *Engine) Batch(ctx context.Context, table *patient.Table) (*patient.Table, error) {
	if e.set.Empty() {
		e.logger.Warn("batch run with no models loaded; output has no prediction columns")
	}
	return PredictBatch(ctx, e.set.Models(), table)
}

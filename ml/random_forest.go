package ml

import (
	"errors"
	"fmt"
)

// RandomForest averages the per-tree risk probability and predicts risk when
// the mean exceeds one half. An exact tie resolves to healthy, the first class.
type RandomForest struct {
	trees []*DecisionTree
}

type forestParams struct {
	Trees []treeParams `json:"trees"`
}

func NewRandomForest(trees []*DecisionTree) (*RandomForest, error) {
	if len(trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	return &RandomForest{trees: trees}, nil
}

func (rf *RandomForest) Predict(features []float64) (int, error) {
	sum := 0.0
	for i, tree := range rf.trees {
		p, err := tree.riskProbability(features)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += p
	}
	if sum/float64(len(rf.trees)) > 0.5 {
		return LabelRisk, nil
	}
	return LabelHealthy, nil
}

package ml

import (
	"errors"
	"fmt"
)

// DecisionTree evaluates a fitted tree stored in pre-order: every split node
// points at children with larger indices, so traversal always terminates.
type DecisionTree struct {
	nodes []TreeNode
	width int
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
	// Value holds per-class sample weights at a leaf, [healthy, risk].
	Value []float64 `json:"value,omitempty"`
}

type treeParams struct {
	Nodes []TreeNode `json:"nodes"`
}

func NewDecisionTree(nodes []TreeNode, width int) (*DecisionTree, error) {
	dt := &DecisionTree{nodes: nodes, width: width}
	if err := dt.validate(); err != nil {
		return nil, err
	}
	return dt, nil
}

func (dt *DecisionTree) Predict(features []float64) (int, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return 0, err
	}
	return leaf.ClassLabel, nil
}

// riskProbability is the fraction of training weight at the reached leaf that
// carried the risk label. Leaves without a Value vote with their class label.
func (dt *DecisionTree) riskProbability(features []float64) (float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return 0, err
	}
	if len(leaf.Value) == 2 {
		total := leaf.Value[0] + leaf.Value[1]
		if total > 0 {
			return leaf.Value[1] / total, nil
		}
	}
	return float64(leaf.ClassLabel), nil
}

func (dt *DecisionTree) leaf(features []float64) (TreeNode, error) {
	if len(dt.nodes) == 0 {
		return TreeNode{}, errors.New("model not fitted")
	}
	if err := checkWidth(features, dt.width); err != nil {
		return TreeNode{}, err
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

func (dt *DecisionTree) validate() error {
	if len(dt.nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range dt.nodes {
		if node.IsLeaf {
			if node.ClassLabel != LabelHealthy && node.ClassLabel != LabelRisk {
				return fmt.Errorf("node %d: class label %d is not binary", i, node.ClassLabel)
			}
			if len(node.Value) != 0 && len(node.Value) != 2 {
				return fmt.Errorf("node %d: value must hold 2 class weights, got %d", i, len(node.Value))
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= dt.width {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(dt.nodes) {
				return fmt.Errorf("node %d: invalid child %d", i, child)
			}
		}
	}
	return nil
}

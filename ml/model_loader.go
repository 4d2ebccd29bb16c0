package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	ArtifactFormat  = "heartguard/model"
	ArtifactVersion = 1
)

const (
	KindDecisionTree       = "decision_tree"
	KindLogisticRegression = "logistic_regression"
	KindRandomForest       = "random_forest"
	KindSVM                = "svm"
)

// Artifact is the on-disk envelope for an exported estimator.
type Artifact struct {
	Format   string          `json:"format"`
	Version  int             `json:"version"`
	Kind     string          `json:"kind"`
	Features []string        `json:"features,omitempty"`
	Scaler   *Scaler         `json:"scaler,omitempty"`
	Params   json.RawMessage `json:"params"`
}

// LoadModel reads the artifact at path. Files ending in .onnx go through ONNX
// Runtime; everything else is decoded as a JSON Artifact. features is the
// column order the caller will pass to Predict.
func LoadModel(path string, features []string) (Classifier, error) {
	if strings.EqualFold(filepath.Ext(path), ".onnx") {
		return LoadONNX(path, len(features))
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, decodeErr(KindIO, path, err)
	}
	c, err := DecodeArtifact(payload, features)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Path = path
		}
		return nil, err
	}
	return c, nil
}

// DecodeArtifact builds a Classifier from a JSON artifact.
func DecodeArtifact(payload []byte, features []string) (Classifier, error) {
	var a Artifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, decodeErr(KindFormat, "", err)
	}
	if a.Format != ArtifactFormat {
		return nil, decodeErr(KindFormat, "", fmt.Errorf("unknown artifact format %q", a.Format))
	}
	if a.Version != ArtifactVersion {
		return nil, decodeErr(KindFormat, "", fmt.Errorf("unsupported artifact version %d", a.Version))
	}
	if len(a.Features) > 0 && !slices.Equal(a.Features, features) {
		return nil, decodeErr(KindInvalid, "", fmt.Errorf("artifact features %v do not match %v", a.Features, features))
	}
	if len(a.Params) == 0 {
		return nil, decodeErr(KindFormat, "", errors.New("artifact has no params"))
	}

	width := len(features)
	c, err := decodeParams(a.Kind, a.Params, width)
	if err != nil {
		return nil, err
	}
	if a.Scaler != nil {
		if err := a.Scaler.validate(width); err != nil {
			return nil, decodeErr(KindInvalid, "", err)
		}
		c = &scaled{scaler: a.Scaler, next: c}
	}
	return c, nil
}

func decodeParams(kind string, raw json.RawMessage, width int) (Classifier, error) {
	switch kind {
	case KindDecisionTree:
		var p treeParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, decodeErr(KindFormat, "", err)
		}
		dt, err := NewDecisionTree(p.Nodes, width)
		if err != nil {
			return nil, decodeErr(KindInvalid, "", err)
		}
		return dt, nil
	case KindLogisticRegression:
		var p logisticParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, decodeErr(KindFormat, "", err)
		}
		if len(p.Coef) != width {
			return nil, decodeErr(KindInvalid, "", fmt.Errorf("%d coefficients, want %d", len(p.Coef), width))
		}
		lr, err := NewLogisticRegression(p.Coef, p.Intercept)
		if err != nil {
			return nil, decodeErr(KindInvalid, "", err)
		}
		return lr, nil
	case KindRandomForest:
		var p forestParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, decodeErr(KindFormat, "", err)
		}
		trees := make([]*DecisionTree, 0, len(p.Trees))
		for i, tp := range p.Trees {
			dt, err := NewDecisionTree(tp.Nodes, width)
			if err != nil {
				return nil, decodeErr(KindInvalid, "", fmt.Errorf("tree %d: %w", i, err))
			}
			trees = append(trees, dt)
		}
		rf, err := NewRandomForest(trees)
		if err != nil {
			return nil, decodeErr(KindInvalid, "", err)
		}
		return rf, nil
	case KindSVM:
		var p svmParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, decodeErr(KindFormat, "", err)
		}
		s, err := newSVM(p, width)
		if err != nil {
			return nil, decodeErr(KindInvalid, "", err)
		}
		return s, nil
	default:
		return nil, decodeErr(KindUnsupported, "", fmt.Errorf("unsupported model kind %q", kind))
	}
}

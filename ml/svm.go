package ml

import (
	"errors"
	"fmt"
	"math"
)

const (
	KernelLinear  = "linear"
	KernelRBF     = "rbf"
	KernelPoly    = "poly"
	KernelSigmoid = "sigmoid"
)

// SVM is a fitted binary support vector classifier in dual form:
// f(x) = sum_i dual_i * K(sv_i, x) + intercept, risk when f(x) > 0.
type SVM struct {
	kernel         string
	gamma          float64
	coef0          float64
	degree         int
	supportVectors [][]float64
	dualCoef       []float64
	intercept      float64
}

type svmParams struct {
	Kernel         string      `json:"kernel"`
	Gamma          float64     `json:"gamma"`
	Coef0          float64     `json:"coef0"`
	Degree         int         `json:"degree"`
	SupportVectors [][]float64 `json:"support_vectors"`
	DualCoef       []float64   `json:"dual_coef"`
	Intercept      float64     `json:"intercept"`
}

func newSVM(p svmParams, width int) (*SVM, error) {
	switch p.Kernel {
	case KernelLinear, KernelRBF, KernelPoly, KernelSigmoid:
	case "":
		p.Kernel = KernelRBF
	default:
		return nil, fmt.Errorf("unsupported kernel %q", p.Kernel)
	}
	if len(p.SupportVectors) == 0 {
		return nil, errors.New("no support vectors")
	}
	if len(p.SupportVectors) != len(p.DualCoef) {
		return nil, fmt.Errorf("%d support vectors but %d dual coefficients", len(p.SupportVectors), len(p.DualCoef))
	}
	for i, sv := range p.SupportVectors {
		if len(sv) != width {
			return nil, fmt.Errorf("support vector %d has %d features, want %d", i, len(sv), width)
		}
	}
	if p.Kernel != KernelLinear && p.Gamma <= 0 {
		return nil, fmt.Errorf("kernel %s needs a positive gamma", p.Kernel)
	}
	if p.Kernel == KernelPoly && p.Degree <= 0 {
		p.Degree = 3
	}
	return &SVM{
		kernel:         p.Kernel,
		gamma:          p.Gamma,
		coef0:          p.Coef0,
		degree:         p.Degree,
		supportVectors: p.SupportVectors,
		dualCoef:       p.DualCoef,
		intercept:      p.Intercept,
	}, nil
}

func (s *SVM) Predict(features []float64) (int, error) {
	if err := checkWidth(features, len(s.supportVectors[0])); err != nil {
		return 0, err
	}
	decision := s.intercept
	for i, sv := range s.supportVectors {
		decision += s.dualCoef[i] * s.apply(sv, features)
	}
	return labelFromDecision(decision), nil
}

func (s *SVM) apply(a, b []float64) float64 {
	switch s.kernel {
	case KernelLinear:
		return dot(a, b)
	case KernelPoly:
		return math.Pow(s.gamma*dot(a, b)+s.coef0, float64(s.degree))
	case KernelSigmoid:
		return math.Tanh(s.gamma*dot(a, b) + s.coef0)
	default:
		sq := 0.0
		for i := range a {
			d := a[i] - b[i]
			sq += d * d
		}
		return math.Exp(-s.gamma * sq)
	}
}

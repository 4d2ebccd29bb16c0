// Package patient defines the 11-field clinical record every model consumes,
// the categorical encodings used by the form, and CSV batch tables.
package patient

import (
	"errors"
	"fmt"
)

// Columns is the model input order. It must match the order the artifacts were
// fitted with; nothing in an artifact or a CSV file can prove that it does.
var Columns = []string{
	"Age",
	"Sex",
	"ChestPainType",
	"RestingBP",
	"Cholesterol",
	"FastingBS",
	"RestingECG",
	"MaxHR",
	"ExerciseAngina",
	"Oldpeak",
	"ST_Slope",
}

// FeatureVector is one encoded patient record.
type FeatureVector struct {
	Age            int     `json:"Age"`
	Sex            int     `json:"Sex"`
	ChestPainType  int     `json:"ChestPainType"`
	RestingBP      int     `json:"RestingBP"`
	Cholesterol    int     `json:"Cholesterol"`
	FastingBS      int     `json:"FastingBS"`
	RestingECG     int     `json:"RestingECG"`
	MaxHR          int     `json:"MaxHR"`
	ExerciseAngina int     `json:"ExerciseAngina"`
	Oldpeak        float64 `json:"Oldpeak"`
	STSlope        int     `json:"ST_Slope"`
}

// Values returns v in Columns order.
func (v FeatureVector) Values() []float64 {
	return []float64{
		float64(v.Age),
		float64(v.Sex),
		float64(v.ChestPainType),
		float64(v.RestingBP),
		float64(v.Cholesterol),
		float64(v.FastingBS),
		float64(v.RestingECG),
		float64(v.MaxHR),
		float64(v.ExerciseAngina),
		v.Oldpeak,
		float64(v.STSlope),
	}
}

// Default is the record the dashboard form starts with.
func Default() FeatureVector {
	return FeatureVector{
		Age:            45,
		Sex:            1,
		ChestPainType:  3,
		RestingBP:      125,
		Cholesterol:    210,
		FastingBS:      0,
		RestingECG:     0,
		MaxHR:          140,
		ExerciseAngina: 0,
		Oldpeak:        1.0,
		STSlope:        0,
	}
}

var ErrOutOfRange = errors.New("value out of range")

type bound struct {
	field    string
	value    float64
	min, max float64
}

// Validate applies the input bounds of the interactive surface. Model code
// never calls it; rows arriving through CSV are passed through as-is.
func (v FeatureVector) Validate() error {
	const unbounded = 1e18
	bounds := []bound{
		{"Age", float64(v.Age), 0, 120},
		{"Sex", float64(v.Sex), 0, 1},
		{"ChestPainType", float64(v.ChestPainType), 0, 3},
		{"RestingBP", float64(v.RestingBP), 0, 300},
		{"Cholesterol", float64(v.Cholesterol), 0, unbounded},
		{"FastingBS", float64(v.FastingBS), 0, 1},
		{"RestingECG", float64(v.RestingECG), 0, 2},
		{"MaxHR", float64(v.MaxHR), 60, 220},
		{"ExerciseAngina", float64(v.ExerciseAngina), 0, 1},
		{"Oldpeak", v.Oldpeak, 0, 10},
		{"ST_Slope", float64(v.STSlope), 0, 2},
	}
	for _, b := range bounds {
		if b.value < b.min || b.value > b.max {
			return fmt.Errorf("%w: %s=%v not in [%v, %v]", ErrOutOfRange, b.field, b.value, b.min, b.max)
		}
	}
	return nil
}

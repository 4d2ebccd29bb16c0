package patient

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Categorical maps the labels shown to a user onto model codes. Options is the
// display order; the code of a label is its position in Codes.
type Categorical struct {
	Field   string
	Label   string
	Options []string
	Codes   []string
}

func (c Categorical) Encode(choice string) (int, error) {
	idx := slices.Index(c.Codes, choice)
	if idx < 0 {
		return 0, fmt.Errorf("%s: unknown choice %q", c.Field, choice)
	}
	return idx, nil
}

// Decode returns the label for code, or "" if code is out of range.
func (c Categorical) Decode(code int) string {
	if code < 0 || code >= len(c.Codes) {
		return ""
	}
	return c.Codes[code]
}

var (
	Sex = Categorical{
		Field:   "Sex",
		Label:   "Sex",
		Options: []string{"Male", "Female"},
		Codes:   []string{"Female", "Male"},
	}
	// ChestPainType codes do not follow the display order: Typical Angina is
	// shown first but encoded last. Whether this matches the encoding the
	// artifacts were fitted with cannot be checked here.
	ChestPainType = Categorical{
		Field:   "ChestPainType",
		Label:   "Chest Pain Type",
		Options: []string{"Typical Angina", "Atypical Angina", "Non-Anginal Pain", "Asymptomatic"},
		Codes:   []string{"Atypical Angina", "Non-Anginal Pain", "Asymptomatic", "Typical Angina"},
	}
	FastingBS = Categorical{
		Field:   "FastingBS",
		Label:   "Fasting Blood Sugar",
		Options: []string{"<= 120 mg/dl", "> 120 mg/dl"},
		Codes:   []string{"<= 120 mg/dl", "> 120 mg/dl"},
	}
	RestingECG = Categorical{
		Field:   "RestingECG",
		Label:   "Resting ECG",
		Options: []string{"Normal", "ST-T Wave Abnormality", "LV Hypertrophy"},
		Codes:   []string{"Normal", "ST-T Wave Abnormality", "LV Hypertrophy"},
	}
	ExerciseAngina = Categorical{
		Field:   "ExerciseAngina",
		Label:   "Exercise Angina",
		Options: []string{"No", "Yes"},
		Codes:   []string{"No", "Yes"},
	}
	STSlope = Categorical{
		Field:   "ST_Slope",
		Label:   "ST Slope",
		Options: []string{"Upsloping", "Flat", "Downsloping"},
		Codes:   []string{"Upsloping", "Flat", "Downsloping"},
	}
)

// Categoricals lists the encoded fields in form order.
var Categoricals = []Categorical{Sex, ChestPainType, FastingBS, RestingECG, ExerciseAngina, STSlope}

// FromForm builds a record from submitted form values. Categorical fields take
// their display labels; missing fields keep the Default values. The result is
// validated against the form bounds.
func FromForm(form url.Values) (FeatureVector, error) {
	v := Default()

	ints := []struct {
		name string
		dst  *int
	}{
		{"Age", &v.Age},
		{"RestingBP", &v.RestingBP},
		{"Cholesterol", &v.Cholesterol},
		{"MaxHR", &v.MaxHR},
	}
	for _, f := range ints {
		raw := strings.TrimSpace(form.Get(f.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return FeatureVector{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = n
	}

	if raw := strings.TrimSpace(form.Get("Oldpeak")); raw != "" {
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return FeatureVector{}, fmt.Errorf("Oldpeak: %w", err)
		}
		v.Oldpeak = x
	}

	cats := []struct {
		enc Categorical
		dst *int
	}{
		{Sex, &v.Sex},
		{ChestPainType, &v.ChestPainType},
		{FastingBS, &v.FastingBS},
		{RestingECG, &v.RestingECG},
		{ExerciseAngina, &v.ExerciseAngina},
		{STSlope, &v.STSlope},
	}
	for _, c := range cats {
		raw := form.Get(c.enc.Field)
		if raw == "" {
			continue
		}
		code, err := c.enc.Encode(raw)
		if err != nil {
			return FeatureVector{}, err
		}
		*c.dst = code
	}

	if err := v.Validate(); err != nil {
		return FeatureVector{}, err
	}
	return v, nil
}

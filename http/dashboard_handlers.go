package http

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"heartguard/consensus"
	"heartguard/patient"
	"heartguard/registry"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"labelText":      consensus.LabelText,
	"isRisk":         func(v consensus.Verdict) bool { return v == consensus.ElevatedRisk },
	"missingMessage": func() string { return MissingFilesMessage },
}).ParseFS(templateFS, "templates/dashboard.html"))

// MissingFilesMessage replaces the result of a submission when no model loaded.
const MissingFilesMessage = "Missing system files."

type numericField struct {
	Name  string
	Label string
	Value string
	Min   string
	Max   string
	Step  string
}

type selectField struct {
	Name     string
	Label    string
	Options  []string
	Selected string
}

type dashboardView struct {
	Numeric     []numericField
	Selects     []selectField
	Loaded      []string
	Diagnostics []registry.Diagnostic
	Missing     bool
	Error       string
	Result      *consensus.Assessment
}

func RegisterDashboardRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", handleDashboard)
	mux.HandleFunc("POST /{$}", handleDashboardSubmit)
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	renderDashboard(w, http.StatusOK, newDashboardView(patient.Default()))
}

func handleDashboardSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		view := newDashboardView(patient.Default())
		view.Error = err.Error()
		renderDashboard(w, http.StatusBadRequest, view)
		return
	}

	v, err := patient.FromForm(r.PostForm)
	if err != nil {
		view := newDashboardView(patient.Default())
		view.keep(r.PostForm)
		view.Error = err.Error()
		renderDashboard(w, http.StatusBadRequest, view)
		return
	}

	view := newDashboardView(v)
	if engine == nil {
		view.Missing = true
		renderDashboard(w, http.StatusOK, view)
		return
	}

	a, err := assess(v)
	switch {
	case errors.Is(err, consensus.ErrNoModels):
		view.Missing = true
	case err != nil:
		view.Error = err.Error()
	default:
		view.Result = &a
	}
	renderDashboard(w, http.StatusOK, view)
}

func newDashboardView(v patient.FeatureVector) dashboardView {
	status := currentStatus()
	view := dashboardView{
		Numeric: []numericField{
			{Name: "Age", Label: "Age", Value: itoa(v.Age), Min: "0", Max: "120", Step: "1"},
			{Name: "RestingBP", Label: "Resting Blood Pressure", Value: itoa(v.RestingBP), Min: "0", Max: "300", Step: "1"},
			{Name: "Cholesterol", Label: "Cholesterol", Value: itoa(v.Cholesterol), Min: "0", Max: "", Step: "1"},
			{Name: "MaxHR", Label: "Max Heart Rate", Value: itoa(v.MaxHR), Min: "60", Max: "220", Step: "1"},
			{Name: "Oldpeak", Label: "Oldpeak", Value: ftoa(v.Oldpeak), Min: "0", Max: "10", Step: "0.1"},
		},
		Loaded:      status.Loaded,
		Diagnostics: status.Diagnostics,
	}

	codes := []int{v.Sex, v.ChestPainType, v.FastingBS, v.RestingECG, v.ExerciseAngina, v.STSlope}
	for i, c := range patient.Categoricals {
		view.Selects = append(view.Selects, selectField{
			Name:     c.Field,
			Label:    c.Label,
			Options:  c.Options,
			Selected: c.Decode(codes[i]),
		})
	}
	return view
}

// keep puts the submitted values back into the form so a rejected submission
// can be corrected.
func (view *dashboardView) keep(form url.Values) {
	for i := range view.Numeric {
		if raw, ok := form[view.Numeric[i].Name]; ok && len(raw) > 0 {
			view.Numeric[i].Value = raw[0]
		}
	}
	for i := range view.Selects {
		if raw, ok := form[view.Selects[i].Name]; ok && len(raw) > 0 {
			view.Selects[i].Selected = raw[0]
		}
	}
}

func renderDashboard(w http.ResponseWriter, status int, view dashboardView) {
	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, view); err != nil {
		logger.Error("render dashboard", zap.Error(err))
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }

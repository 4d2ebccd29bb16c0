package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"heartguard/consensus"
	"heartguard/ml"
	"heartguard/registry"
)

func constant(label int) ml.Classifier {
	return ml.ClassifierFunc(func([]float64) (int, error) { return label, nil })
}

// useEngine installs an engine whose models vote labels in registry order.
func useEngine(t *testing.T, diagnostics []registry.Diagnostic, labels ...int) {
	t.Helper()
	models := make([]registry.Model, len(labels))
	for i, l := range labels {
		models[i] = registry.Model{Name: registry.Entries[i].Name, Classifier: constant(l)}
	}
	e, err := consensus.NewEngine(registry.NewSet(models, diagnostics), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	SetEngine(e)
	t.Cleanup(func() { SetEngine(nil) })
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	RegisterHandlers(mux)
	RegisterDashboardRoutes(mux)
	return mux
}

func TestHealthHandler(t *testing.T) {
	useEngine(t, nil, 1, 0)

	req, err := http.NewRequest("GET", "/api/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(handleHealth)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	expected := `{"models":2,"status":"ok"}`
	if strings.TrimSpace(rr.Body.String()) != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
}

func TestHealthDegradedWithoutModels(t *testing.T) {
	useEngine(t, nil)

	rr := httptest.NewRecorder()
	newMux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if !strings.Contains(rr.Body.String(), `"degraded"`) {
		t.Fatalf("expected degraded status, got %s", rr.Body.String())
	}
}

func TestModelsHandler(t *testing.T) {
	useEngine(t, []registry.Diagnostic{{Name: "Support Vector Machine", Message: "File not found at: /x/SVM.json"}}, 1, 0, 1)

	rr := httptest.NewRecorder()
	newMux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var status modelStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(status.Loaded) != 3 || status.Loaded[2] != "Random Forest" {
		t.Fatalf("unexpected loaded models: %v", status.Loaded)
	}
	if len(status.Diagnostics) != 1 || status.Diagnostics[0].Name != "Support Vector Machine" {
		t.Fatalf("unexpected diagnostics: %v", status.Diagnostics)
	}
}

func batchRequest(t *testing.T, target, csv string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "patients.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(csv))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

const patientsCSV = "Age,Sex,ChestPainType,RestingBP,Cholesterol,FastingBS,RestingECG,MaxHR,ExerciseAngina,Oldpeak,ST_Slope\n" +
	"45,1,3,125,210,0,0,140,0,1.0,0\n" +
	"63,0,2,150,300,1,1,110,1,2.5,1\n"

func TestBatchHandlerJSON(t *testing.T) {
	useEngine(t, nil, 1, 0)

	rr := httptest.NewRecorder()
	newMux().ServeHTTP(rr, batchRequest(t, "/api/batch", patientsCSV))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Header []string   `json:"header"`
		Rows   [][]string `json:"rows"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if n := len(payload.Header); n != 13 {
		t.Fatalf("expected 13 columns, got %d: %v", n, payload.Header)
	}
	if payload.Header[11] != "Decision Tree" || payload.Header[12] != "Logistic Regression" {
		t.Fatalf("unexpected prediction columns: %v", payload.Header[11:])
	}
	for _, row := range payload.Rows {
		if row[11] != consensus.TextRisk || row[12] != consensus.TextHealthy {
			t.Fatalf("unexpected labels: %v", row[11:])
		}
	}
}

func TestBatchHandlerCSVDownload(t *testing.T) {
	useEngine(t, nil, 0)

	rr := httptest.NewRecorder()
	newMux().ServeHTTP(rr, batchRequest(t, "/api/batch?format=csv", patientsCSV))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, BatchReportName) {
		t.Fatalf("unexpected disposition: %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.HasSuffix(lines[0], ",Decision Tree") || !strings.HasSuffix(lines[1], ",Healthy") {
		t.Fatalf("unexpected csv: %q", rr.Body.String())
	}
}

func TestBatchHandlerSchemaMismatch(t *testing.T) {
	useEngine(t, nil, 1)

	rr := httptest.NewRecorder()
	newMux().ServeHTTP(rr, batchRequest(t, "/api/batch", "Age,Sex\n45,1\n"))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestBatchHandlerRequiresFile(t *testing.T) {
	useEngine(t, nil, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/batch", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rr := httptest.NewRecorder()
	newMux().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestFeedWithoutHub(t *testing.T) {
	SetHub(nil)
	rr := httptest.NewRecorder()
	NewHandler(DefaultServerConfig()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ws", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler(DefaultServerConfig()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

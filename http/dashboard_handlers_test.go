package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"heartguard/registry"
)

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestDashboardRendersDefaults(t *testing.T) {
	useEngine(t, nil, 0, 0)

	w := httptest.NewRecorder()
	newMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`name="Age" value="45"`,
		`<option selected>Typical Angina</option>`,
		`Decision Tree: loaded`,
		`action="/api/batch?format=csv"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if strings.Contains(body, MissingFilesMessage) {
		t.Error("dashboard reports missing files with models loaded")
	}
}

func TestDashboardSubmitShowsConsensus(t *testing.T) {
	useEngine(t, nil, 1, 1, 1, 0)

	w := httptest.NewRecorder()
	newMux().ServeHTTP(w, postForm(url.Values{
		"Age":           {"61"},
		"ChestPainType": {"Asymptomatic"},
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Elevated risk: 75% of models agree.") {
		t.Fatalf("missing consensus card:\n%s", body)
	}
	if !strings.Contains(body, `<option selected>Asymptomatic</option>`) {
		t.Error("submitted choice not kept")
	}
	if strings.Count(body, `class="card risk"`) != 4 {
		t.Errorf("expected three risk cards and a risk verdict")
	}
}

func TestDashboardMissingFiles(t *testing.T) {
	useEngine(t, []registry.Diagnostic{{Name: "SVM", Message: "File not found at: /srv/SVM.json"}})

	w := httptest.NewRecorder()
	newMux().ServeHTTP(w, postForm(url.Values{"Age": {"50"}}))

	body := w.Body.String()
	if !strings.Contains(body, MissingFilesMessage) {
		t.Fatal("expected missing files message")
	}
	if !strings.Contains(body, "File not found at: /srv/SVM.json") {
		t.Error("diagnostic not listed")
	}
	if strings.Contains(body, `id="result"`) {
		t.Error("result rendered without models")
	}
}

func TestDashboardRejectsInvalidForm(t *testing.T) {
	useEngine(t, nil, 1)

	w := httptest.NewRecorder()
	newMux().ServeHTTP(w, postForm(url.Values{"Sex": {"Unknown"}}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `id="form-error"`) {
		t.Error("error not rendered")
	}
}

func TestDashboardGetDoesNotReportMissingFiles(t *testing.T) {
	useEngine(t, []registry.Diagnostic{{Name: "SVM", Message: "File not found at: /srv/SVM.json"}})

	w := httptest.NewRecorder()
	newMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := w.Body.String()
	if strings.Contains(body, MissingFilesMessage) {
		t.Fatal("missing files reported before any submission")
	}
	if !strings.Contains(body, "File not found at: /srv/SVM.json") {
		t.Error("diagnostic not listed in system info")
	}
}

func TestDashboardInvalidFormKeepsInput(t *testing.T) {
	useEngine(t, nil, 1)

	w := httptest.NewRecorder()
	newMux().ServeHTTP(w, postForm(url.Values{
		"Age":           {"64"},
		"MaxHR":         {"20"},
		"ChestPainType": {"Non-Anginal Pain"},
	}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`name="Age" value="64"`,
		`name="MaxHR" value="20"`,
		`<option selected>Non-Anginal Pain</option>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("submitted value lost, missing %q", want)
		}
	}
}

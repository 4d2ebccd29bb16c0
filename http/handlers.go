package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	"heartguard/consensus"
	"heartguard/monitoring"
	"heartguard/patient"
	"heartguard/registry"
)

// BatchReportName is the download name of a labelled batch CSV.
const BatchReportName = "batch_report.csv"

var (
	logger         = zap.NewNop()
	engine         *consensus.Engine
	hub            *monitoring.Hub
	maxUploadBytes int64 = 32 << 20
)

func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

func SetEngine(e *consensus.Engine) {
	engine = e
}

// SetHub attaches the live feed. Without one, /api/ws answers 503 and
// results are not published.
func SetHub(h *monitoring.Hub) {
	hub = h
}

func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/models", handleModels)
	mux.HandleFunc("POST /api/predict", handlePredict)
	mux.HandleFunc("POST /api/batch", handleBatch)
}

// modelStatus is the /api/models body and the dashboard's System Info list.
type modelStatus struct {
	Loaded      []string              `json:"loaded"`
	Diagnostics []registry.Diagnostic `json:"diagnostics"`
}

func currentStatus() modelStatus {
	status := modelStatus{Loaded: []string{}, Diagnostics: []registry.Diagnostic{}}
	if engine == nil {
		return status
	}
	set := engine.Set()
	status.Loaded = append(status.Loaded, set.Names()...)
	status.Diagnostics = append(status.Diagnostics, set.Diagnostics()...)
	return status
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "models": 0}
	if engine == nil || engine.Set().Empty() {
		body["status"] = "degraded"
	} else {
		body["models"] = engine.Set().Len()
	}
	writeJSON(w, http.StatusOK, body)
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentStatus())
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	if engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not initialized")
		return
	}

	v, err := decodeRecord(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := assess(v)
	if err != nil {
		var noModels *consensus.NoModelsError
		if errors.As(err, &noModels) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":       noModels.Error(),
				"diagnostics": noModels.Diagnostics,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// decodeRecord accepts either an encoded JSON record or form fields carrying
// the choice labels shown on the dashboard. Missing fields keep the defaults.
func decodeRecord(r *http.Request) (patient.FeatureVector, error) {
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return patient.FeatureVector{}, fmt.Errorf("invalid form: %w", err)
		}
		return patient.FromForm(r.PostForm)
	}

	v := patient.Default()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return patient.FeatureVector{}, fmt.Errorf("invalid request body: %w", err)
	}
	if err := v.Validate(); err != nil {
		return patient.FeatureVector{}, err
	}
	return v, nil
}

// assess runs the engine and reports the outcome to metrics and the feed.
func assess(v patient.FeatureVector) (consensus.Assessment, error) {
	start := time.Now()
	a, err := engine.Assess(v)
	if err != nil {
		monitoring.ObserveAssessment("", time.Since(start))
		logger.Warn("assessment failed", zap.Error(err))
		return a, err
	}
	monitoring.ObserveAssessment(string(a.Verdict), time.Since(start))
	publish(monitoring.AssessmentEvent, a)
	return a, nil
}

func handleBatch(w http.ResponseWriter, r *http.Request) {
	if engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not initialized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	table, err := patient.ReadTable(file)
	if err != nil {
		monitoring.ObserveBatch(0, monitoring.OutcomeError)
		writeError(w, http.StatusBadRequest, "invalid csv: "+err.Error())
		return
	}

	out, err := engine.Batch(r.Context(), table)
	if err != nil {
		monitoring.ObserveBatch(len(table.Rows), monitoring.OutcomeError)
		logger.Warn("batch failed", zap.String("file", header.Filename), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, patient.ErrSchema) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	monitoring.ObserveBatch(len(out.Rows), monitoring.OutcomeSuccess)
	publish(monitoring.BatchEvent, map[string]any{
		"file":   header.Filename,
		"rows":   len(out.Rows),
		"models": engine.Set().Names(),
	})

	if r.URL.Query().Get("format") == "csv" {
		var buf bytes.Buffer
		if err := out.WriteCSV(&buf); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", BatchReportName))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"header": out.Header,
		"rows":   out.Rows,
	})
}

func handleFeed(w http.ResponseWriter, r *http.Request) {
	if hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live feed not enabled")
		return
	}
	hub.ServeWS(w, r)
}

func publish(kind monitoring.MessageType, data any) {
	if hub == nil {
		return
	}
	if err := hub.Publish(kind, data); err != nil {
		logger.Warn("publish failed", zap.String("type", string(kind)), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"obesityrisk/assessment"
	"obesityrisk/ml"
)

type handlers struct {
	service  *assessment.Service
	model    ml.ModelInfo
	watcher  ArtifactStatus
	logger   *zap.Logger
	page     *template.Template
	upgrader websocket.Upgrader
	started  time.Time
}

func newHandlers(deps Deps) (*handlers, error) {
	page, err := parsePage()
	if err != nil {
		return nil, err
	}
	return &handlers{
		service: deps.Service,
		model:   deps.Model,
		watcher: deps.Watcher,
		logger:  deps.Logger,
		page:    page,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		started: time.Now(),
	}, nil
}

func (h *handlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /assess", h.handleAssessForm)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/schema", h.handleSchema)
	mux.HandleFunc("GET /api/model", h.handleModel)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/ws/predict", h.handlePredictSocket)
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":           "ok",
		"uptime":           time.Since(h.started).Round(time.Second).String(),
		"artifact_changed": false,
	}
	if h.watcher != nil {
		if changed, at := h.watcher.Changed(); changed {
			resp["artifact_changed"] = true
			resp["artifact_changed_at"] = at
			resp["restart_required"] = true
		}
	}
	respondJSON(w, resp)
}

type schemaField struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Unit        string   `json:"unit,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Levels      []string `json:"levels,omitempty"`
}

func (h *handlers) handleSchema(w http.ResponseWriter, r *http.Request) {
	specs := ml.Fields()
	out := make([]schemaField, len(specs))
	for i, f := range specs {
		out[i] = schemaField{
			Name:        f.Name,
			Kind:        string(f.Kind),
			Description: f.Description,
			Unit:        f.Unit,
			Levels:      f.Levels,
		}
		if f.Numeric() {
			lo, hi := f.Min, f.Max
			out[i].Min, out[i].Max = &lo, &hi
		}
	}
	respondJSON(w, map[string]interface{}{
		"fields": out,
		"labels": ml.Labels(),
	})
}

func (h *handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"format":        ml.ArtifactFormat,
		"num_trees":     h.model.NumTrees(),
		"feature_names": h.model.FeatureNames(),
		"training":      h.model.Info(),
	})
}

func (h *handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.service.Metrics().Snapshot())
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeRecord(r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(w, status, err)
		return
	}

	a, err := h.service.Assess(raw)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("predict failed", append(requestFields(r), zap.Error(err))...)
			err = errors.New("prediction failed")
		}
		respondError(w, status, err)
		return
	}
	respondJSON(w, a)
}

// decodeRecord reads one JSON object. Numbers are kept as json.Number so
// integer fields are not silently truncated.
func decodeRecord(r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if raw == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	if dec.More() {
		return nil, errors.New("request body must contain a single JSON object")
	}
	return raw, nil
}

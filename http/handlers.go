package http

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"spamdetect/apperr"
	"spamdetect/classifier"
	"spamdetect/db"
	"spamdetect/detector"
	"spamdetect/ml"
	"spamdetect/progress"
)

// Detector is the part of *detector.Service the handlers use.
type Detector interface {
	Detect(ctx context.Context, text string) (classifier.Label, error)
	Batch(ctx context.Context, inputPath string) (string, error)
	Performance(ctx context.Context) (ml.Metrics, error)
	History(limit int) ([]db.Prediction, error)
	State() progress.State
}

var _ Detector = (*detector.Service)(nil)

const maxBodyBytes = 1 << 20

type handlers struct {
	detector Detector
	batchDir string
	log      *zap.Logger
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label      classifier.Label `json:"label"`
	Prediction string           `json:"prediction"`
	Display    string           `json:"display"`
}

type batchRequest struct {
	InputPath string `json:"input_path"`
}

type batchResponse struct {
	OutputPath string `json:"output_path"`
	Message    string `json:"message"`
}

type performanceResponse struct {
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	Samples   int       `json:"samples"`
	Confusion [2][2]int `json:"confusion_matrix"`
	Report    string    `json:"report"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	label, err := h.detector.Detect(r.Context(), req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{Label: label, Prediction: label.Prediction(), Display: label.Display()})
}

func (h *handlers) batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.InputPath == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "input_path is required"})
		return
	}
	input, err := resolveBatchPath(h.batchDir, req.InputPath)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.detector.Batch(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{OutputPath: out, Message: "Completed! Results saved to: " + out})
}

func (h *handlers) performance(w http.ResponseWriter, r *http.Request) {
	m, err := h.detector.Performance(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, performanceResponse{
		Accuracy:  m.Accuracy,
		Precision: m.Precision,
		Recall:    m.Recall,
		Samples:   m.Samples,
		Confusion: m.Confusion,
		Report:    classifier.FormatPerformance(m),
	})
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = l
	}
	predictions, err := h.detector.History(limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"predictions": predictions})
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.detector.State())
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Warn("request failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
	}
	resp := errorResponse{Error: apperr.Message(err)}
	if kind := apperr.KindOf(err); kind != apperr.Unknown {
		resp.Kind = kind.String()
	}
	writeJSON(w, status, resp)
}

// resolveBatchPath joins a relative input onto dir and rejects anything,
// symlinks included, that ends up outside dir.
func resolveBatchPath(dir, input string) (string, error) {
	const op = "http.batch"
	if dir == "" {
		return "", apperr.New(apperr.SchemaError, op, "batch endpoint is disabled: no batch directory configured")
	}
	base, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	path := input
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)
	if !within(base, path) {
		return "", apperr.New(apperr.SchemaError, op, "input_path must be inside the batch directory")
	}

	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	if !within(realBase, resolved) {
		return "", apperr.New(apperr.SchemaError, op, "input_path must be inside the batch directory")
	}
	return resolved, nil
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// StatusFor maps an error to the HTTP status reported to clients. Artifact
// faults nested inside a batch row failure are still server faults.
func StatusFor(err error) int {
	for _, kind := range []apperr.Kind{apperr.VectorizationError, apperr.ArtifactCorrupt, apperr.ArtifactMissing} {
		if errors.Is(err, &apperr.Error{Kind: kind}) {
			return http.StatusServiceUnavailable
		}
	}
	switch apperr.KindOf(err) {
	case apperr.EmptyInput, apperr.SchemaError:
		return http.StatusBadRequest
	case apperr.ExecutionInProgress:
		return http.StatusConflict
	case apperr.ArtifactMissing, apperr.ArtifactCorrupt, apperr.VectorizationError:
		return http.StatusServiceUnavailable
	case apperr.EvaluationDataMissing:
		return http.StatusNotFound
	case apperr.BatchClassificationError:
		return http.StatusUnprocessableEntity
	case apperr.Cancelled:
		return http.StatusGatewayTimeout
	}
	switch {
	case errors.Is(err, detector.ErrHistoryDisabled):
		return http.StatusNotFound
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

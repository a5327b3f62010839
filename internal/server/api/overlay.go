package api

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/overlay"
)

// Ingestion limits used when none are configured.
const (
	DefaultIngestRate  = 20
	DefaultIngestBurst = 5
)

// maxIngestBody bounds a landmark upload; a refined face mesh is ~40 KB as JSON.
const maxIngestBody = 1 << 20

// OverlayResponse is the wire form of a committed overlay transform.
type OverlayResponse struct {
	Position    overlay.Vec3 `json:"position"`
	Scale       float64      `json:"scale"`
	Rotation    float64      `json:"rotation"`
	EyeDistance float64      `json:"eye_distance"`
	Matrix      [16]float64  `json:"matrix"`
	Version     uint64       `json:"version"`
	CommittedAt time.Time    `json:"committed_at"`
}

// NewOverlayResponse converts a committed transform to its wire form. The
// matrix is column-major.
func NewOverlayResponse(c overlay.Committed) OverlayResponse {
	return OverlayResponse{
		Position:    c.Transform.Position,
		Scale:       c.Transform.Scale,
		Rotation:    c.Transform.Rotation,
		EyeDistance: c.Transform.EyeDistance,
		Matrix:      c.Transform.Matrix(),
		Version:     c.Version,
		CommittedAt: c.CommittedAt,
	}
}

// OverlayHandler serves the committed transform and accepts landmark sets
// from external detectors.
type OverlayHandler struct {
	pipeline Pipeline
	limiter  *rate.Limiter
}

// NewOverlayHandler creates an OverlayHandler. Landmark uploads are limited to
// perSecond requests with the given burst.
func NewOverlayHandler(p Pipeline, perSecond float64, burst int) *OverlayHandler {
	if perSecond <= 0 {
		perSecond = DefaultIngestRate
	}
	if burst <= 0 {
		burst = DefaultIngestBurst
	}
	return &OverlayHandler{
		pipeline: p,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

type ingestRequest struct {
	Width  int                      `json:"width"`
	Height int                      `json:"height"`
	Faces  []detector.FaceLandmarks `json:"faces"`
}

type ingestResponse struct {
	Updated   bool             `json:"updated"`
	Transform *OverlayResponse `json:"transform"`
}

// Overlay handles GET /api/overlay. It answers 204 until the first transform
// is committed.
func (h *OverlayHandler) Overlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c, ok := h.pipeline.Overlay()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, NewOverlayResponse(c))
}

// Landmarks handles POST /api/landmarks. Only the first face is used; zero
// faces leave the committed transform unchanged.
func (h *OverlayHandler) Landmarks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many landmark uploads")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Width <= 0 || req.Height <= 0 {
		writeError(w, http.StatusBadRequest, "Width and height must be positive")
		return
	}

	response := ingestResponse{}

	c, updated := h.pipeline.Ingest(req.Faces, req.Width, req.Height)
	if updated {
		response.Updated = true
	} else {
		var ok bool
		if c, ok = h.pipeline.Overlay(); !ok {
			writeJSON(w, http.StatusOK, response)
			return
		}
	}

	or := NewOverlayResponse(c)
	response.Transform = &or
	writeJSON(w, http.StatusOK, response)
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/calibrate"
	"github.com/ayusman/tryon/internal/overlay"
	"github.com/ayusman/tryon/internal/store"
)

// SamplesHandler handles calibration samples and calibration runs for a profile.
type SamplesHandler struct {
	profiles *ProfileHandler
	trainer  *calibrate.Trainer
}

// NewSamplesHandler creates a new SamplesHandler with the given store.
func NewSamplesHandler(s *store.Store, p Pipeline) *SamplesHandler {
	return &SamplesHandler{
		profiles: NewProfileHandler(s, p),
		trainer:  calibrate.NewTrainer(),
	}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/profiles/{id}/samples and /api/profiles/{id}/calibrate
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/profiles/")
	parts := strings.Split(path, "/")

	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	profileID := parts[0]

	switch parts[1] {
	case "samples":
		switch r.Method {
		case http.MethodGet:
			h.list(w, r, profileID)
		case http.MethodPost:
			h.create(w, r, profileID)
		case http.MethodDelete:
			h.clear(w, r, profileID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "calibrate":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.calibrate(w, r, profileID)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Request types

type createSamplesRequest struct {
	Samples []json.RawMessage `json:"samples"`
}

// Response types

type sampleResponse struct {
	ID          int64           `json:"id"`
	ProfileID   string          `json:"profile_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   string          `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

type calibrateResponse struct {
	Profile     profileResponse  `json:"profile"`
	Calibration calibrate.Result `json:"calibration"`
}

// list handles GET /api/profiles/{id}/samples
func (h *SamplesHandler) list(w http.ResponseWriter, r *http.Request, profileID string) {
	if _, ok := h.profiles.getProfile(w, profileID); !ok {
		return
	}

	samples, err := h.profiles.store.Samples().GetByProfileID(profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{
		Samples: make([]sampleResponse, 0, len(samples)),
	}

	for _, s := range samples {
		response.Samples = append(response.Samples, sampleResponse{
			ID:          s.ID,
			ProfileID:   s.ProfileID,
			SampleIndex: s.SampleIndex,
			Data:        s.Data,
			CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/profiles/{id}/samples
func (h *SamplesHandler) create(w http.ResponseWriter, r *http.Request, profileID string) {
	var req createSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "At least one sample is required")
		return
	}

	for i, sample := range req.Samples {
		if _, err := calibrate.ParseSample(sample); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("sample %d: %v", i, err))
			return
		}
	}

	if err := h.profiles.store.Samples().Create(profileID, req.Samples); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save samples")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"status": "ok", "added": len(req.Samples)})
}

// clear handles DELETE /api/profiles/{id}/samples
func (h *SamplesHandler) clear(w http.ResponseWriter, r *http.Request, profileID string) {
	if _, ok := h.profiles.getProfile(w, profileID); !ok {
		return
	}

	if err := h.profiles.store.Samples().DeleteByProfileID(profileID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete samples")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// calibrate handles POST /api/profiles/{id}/calibrate. It sets the profile's
// baseline eye distance to the mean over its samples.
func (h *SamplesHandler) calibrate(w http.ResponseWriter, r *http.Request, profileID string) {
	p, ok := h.profiles.getProfile(w, profileID)
	if !ok {
		return
	}

	samples, err := h.profiles.store.Samples().GetByProfileID(profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load samples")
		return
	}

	raw := make([]json.RawMessage, len(samples))
	for i, s := range samples {
		raw[i] = s.Data
	}

	result, err := h.trainer.Baseline(raw)
	if err != nil {
		switch {
		case errors.Is(err, calibrate.ErrNoSamples),
			errors.Is(err, calibrate.ErrMalformedSample),
			errors.Is(err, calibrate.ErrDegenerate):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Calibration failed")
		}
		return
	}

	p.Params = result.Apply(p.Params)
	if err := h.profiles.store.Profiles().Update(p); err != nil {
		if errors.Is(err, overlay.ErrInvalidParams) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	log.WithFields(log.Fields{
		"profile":  p.Name,
		"baseline": result.Baseline,
		"std_dev":  result.StdDev,
		"samples":  result.Samples,
	}).Info("Profile calibrated")

	if pl := h.profiles.pipeline; pl != nil && pl.ActiveProfileID() == p.ID {
		if err := pl.UseProfile(p); err != nil {
			log.WithError(err).WithField("profile", p.Name).Warn("Failed to re-apply active profile")
		}
	}

	writeJSON(w, http.StatusOK, calibrateResponse{
		Profile:     h.profiles.toResponse(p),
		Calibration: result,
	})
}

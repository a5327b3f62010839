// Package api provides HTTP API handlers for the try-on service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/overlay"
	"github.com/ayusman/tryon/internal/store"
)

// Pipeline is the part of the application context the API drives.
type Pipeline interface {
	UseProfile(p *store.Profile) error
	UseDefaults()
	ActiveProfileID() string
	Params() overlay.Params
	Period() time.Duration
	Ingest(faces []detector.FaceLandmarks, width, height int) (overlay.Committed, bool)
	Overlay() (overlay.Committed, bool)
}

// ProfileHandler handles HTTP requests for profile resources.
type ProfileHandler struct {
	store    *store.Store
	pipeline Pipeline
}

// NewProfileHandler creates a new ProfileHandler. pipeline may be nil, in
// which case the active profile cannot be switched.
func NewProfileHandler(s *store.Store, p Pipeline) *ProfileHandler {
	return &ProfileHandler{store: s, pipeline: p}
}

// ServeHTTP routes /api/profiles, /api/profiles/active and /api/profiles/{id}.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/profiles")
	path = strings.Trim(path, "/")

	switch path {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	case "active":
		switch r.Method {
		case http.MethodGet:
			h.getActive(w, r)
		case http.MethodPut:
			h.setActive(w, r)
		case http.MethodDelete:
			h.clearActive(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createProfileRequest struct {
	Name     string          `json:"name"`
	Asset    string          `json:"asset"`
	Params   *overlay.Params `json:"params"`
	PeriodMs int             `json:"period_ms"`
}

type updateProfileRequest struct {
	Name     string          `json:"name"`
	Asset    *string         `json:"asset"`
	Params   *overlay.Params `json:"params"`
	PeriodMs int             `json:"period_ms"`
}

type setActiveRequest struct {
	ID string `json:"id"`
}

type profileResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Asset     string         `json:"asset"`
	Params    overlay.Params `json:"params"`
	PeriodMs  int            `json:"period_ms"`
	Samples   int            `json:"samples"`
	Active    bool           `json:"active"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type listProfilesResponse struct {
	Profiles []profileResponse `json:"profiles"`
}

type activeResponse struct {
	Profile  *profileResponse `json:"profile"`
	Params   overlay.Params   `json:"params"`
	PeriodMs int64            `json:"period_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// defaultPeriodMs is used for profiles created without a period.
const defaultPeriodMs = 120

func (h *ProfileHandler) toResponse(p *store.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		Name:      p.Name,
		Asset:     p.Asset,
		Params:    p.Params,
		PeriodMs:  p.PeriodMs,
		Samples:   p.Samples,
		Active:    h.pipeline != nil && h.pipeline.ActiveProfileID() == p.ID,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// getProfile loads a profile and writes the error response if it fails.
func (h *ProfileHandler) getProfile(w http.ResponseWriter, id string) (*store.Profile, bool) {
	p, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return nil, false
	}
	return p, true
}

// nameTaken reports whether another profile already uses name.
func (h *ProfileHandler) nameTaken(name, exceptID string) bool {
	existing, err := h.store.Profiles().GetByName(name)
	return err == nil && existing.ID != exceptID
}

// list handles GET /api/profiles.
func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.Profiles().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}

	response := listProfilesResponse{
		Profiles: make([]profileResponse, 0, len(profiles)),
	}
	for _, p := range profiles {
		response.Profiles = append(response.Profiles, h.toResponse(p))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/profiles/{id}.
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := h.getProfile(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(p))
}

// create handles POST /api/profiles.
func (h *ProfileHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if h.nameTaken(req.Name, "") {
		writeError(w, http.StatusConflict, "Profile name already exists")
		return
	}

	params := overlay.DefaultParams()
	if req.Params != nil {
		params = *req.Params
	}
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	periodMs := req.PeriodMs
	if periodMs <= 0 {
		periodMs = defaultPeriodMs
	}

	p := &store.Profile{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Asset:    req.Asset,
		Params:   params,
		PeriodMs: periodMs,
	}

	if err := h.store.Profiles().Create(p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create profile")
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(p))
}

// update handles PUT /api/profiles/{id}. The active profile is re-applied so
// new parameters take effect on the next cycle.
func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := h.getProfile(w, id)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" && req.Name != p.Name {
		if h.nameTaken(req.Name, p.ID) {
			writeError(w, http.StatusConflict, "Profile name already exists")
			return
		}
		p.Name = req.Name
	}
	if req.Asset != nil {
		p.Asset = *req.Asset
	}
	if req.Params != nil {
		if err := req.Params.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p.Params = *req.Params
	}
	if req.PeriodMs > 0 {
		p.PeriodMs = req.PeriodMs
	}

	if err := h.store.Profiles().Update(p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	if h.pipeline != nil && h.pipeline.ActiveProfileID() == p.ID {
		if err := h.pipeline.UseProfile(p); err != nil {
			log.WithError(err).WithField("profile", p.Name).Warn("Failed to re-apply active profile")
		}
	}

	writeJSON(w, http.StatusOK, h.toResponse(p))
}

// delete handles DELETE /api/profiles/{id}.
func (h *ProfileHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Profiles().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}

	if h.pipeline != nil && h.pipeline.ActiveProfileID() == id {
		h.pipeline.UseDefaults()
	}

	w.WriteHeader(http.StatusNoContent)
}

// clearActive handles DELETE /api/profiles/active: the pipeline goes back to
// the configured params.
func (h *ProfileHandler) clearActive(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "Pipeline not available")
		return
	}

	if err := h.store.Settings().Delete(store.SettingActiveProfile); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear active profile")
		return
	}
	h.pipeline.UseDefaults()

	writeJSON(w, http.StatusOK, activeResponse{
		Params:   h.pipeline.Params(),
		PeriodMs: h.pipeline.Period().Milliseconds(),
	})
}

// getActive handles GET /api/profiles/active.
func (h *ProfileHandler) getActive(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "Pipeline not available")
		return
	}

	response := activeResponse{
		Params:   h.pipeline.Params(),
		PeriodMs: h.pipeline.Period().Milliseconds(),
	}

	if id := h.pipeline.ActiveProfileID(); id != "" {
		p, err := h.store.Profiles().GetByID(id)
		if err == nil {
			pr := h.toResponse(p)
			response.Profile = &pr
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// setActive handles PUT /api/profiles/active with body {"id": "..."}.
func (h *ProfileHandler) setActive(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "Pipeline not available")
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "ID is required")
		return
	}

	p, ok := h.getProfile(w, req.ID)
	if !ok {
		return
	}

	if err := h.pipeline.UseProfile(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Settings().Set(store.SettingActiveProfile, p.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save active profile")
		return
	}

	pr := h.toResponse(p)
	writeJSON(w, http.StatusOK, activeResponse{
		Profile:  &pr,
		Params:   h.pipeline.Params(),
		PeriodMs: h.pipeline.Period().Milliseconds(),
	})
}

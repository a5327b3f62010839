// Package app provides the application context for the try-on service: it owns
// the camera, the face detector, the active overlay parameters and the
// committed overlay transform.
package app

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/capture"
	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/overlay"
	"github.com/ayusman/tryon/internal/store"
)

// DefaultPeriod is the detection cycle period.
const DefaultPeriod = 120 * time.Millisecond

// Detector backends.
const (
	BackendMediaPipe = "mediapipe"
	BackendMock      = "mock"
)

// Config holds configuration options for the application.
type Config struct {
	Store           *store.Store
	Camera          capture.Options
	DetectorBackend string
	Params          overlay.Params
	Period          time.Duration
	MotionThreshold float64
}

// CommitFunc is called after every committed transform.
type CommitFunc func(overlay.Committed)

// Stats counts detection cycle outcomes.
type Stats struct {
	Cycles   uint64 `json:"cycles"`
	Skipped  uint64 `json:"skipped"`
	Commits  uint64 `json:"commits"`
	Ingested uint64 `json:"ingested"`
}

// App is the application context that runs the detection cycle and holds the
// committed overlay transform.
type App struct {
	config    Config
	camera    capture.Camera
	motion    *capture.MotionGate
	detector  detector.Detector
	slot      *overlay.Slot
	params    overlay.Params
	period    time.Duration
	profileID string

	// configured values restored by UseDefaults
	defaultParams overlay.Params
	defaultPeriod time.Duration

	enabled   bool
	callbacks []CommitFunc
	mu        sync.RWMutex
	stopCh    chan struct{}
	doneCh    chan struct{}

	cycles   atomic.Uint64
	skipped  atomic.Uint64
	commits  atomic.Uint64
	ingested atomic.Uint64
}

// New creates a new App. An invalid Params or non-positive Period falls back to
// the defaults. If the MediaPipe backend cannot be created the mock detector is
// used so the service keeps serving.
func New(config Config) *App {
	params := config.Params
	if err := params.Validate(); err != nil {
		log.WithError(err).Warn("Invalid overlay params, using defaults")
		params = overlay.DefaultParams()
	}

	period := config.Period
	if period <= 0 {
		period = DefaultPeriod
	}

	a := &App{
		config:  config,
		camera:  capture.NewCamera(config.Camera),
		motion:  capture.NewMotionGate(config.MotionThreshold),
		slot:    overlay.NewSlot(),
		params:  params,
		period:  period,
		enabled: true,

		defaultParams: params,
		defaultPeriod: period,
	}

	switch config.DetectorBackend {
	case BackendMock:
		a.detector = detector.NewMockDetector()
		log.Info("Using mock face detector")
	default:
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			a.detector = mp
			log.Info("Using MediaPipe face mesh detection")
		} else {
			log.WithError(err).Warn("MediaPipe not available, using mock detector")
			a.detector = detector.NewMockDetector()
		}
	}

	return a
}

// SetEnabled enables or disables the detection cycle without stopping the camera.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether the detection cycle is enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the face detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// SetCamera replaces the camera. It must be called before Start.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// RegisterCommitCallback adds fn to the functions called after each commit.
func (a *App) RegisterCommitCallback(fn CommitFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, fn)
}

// Params returns the active overlay parameters.
func (a *App) Params() overlay.Params {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.params
}

// Period returns the active detection cycle period.
func (a *App) Period() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.period
}

// ActiveProfileID returns the ID of the profile in use, or "" for the configured defaults.
func (a *App) ActiveProfileID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.profileID
}

// UseProfile switches the parameters and period to those of p. A running
// pipeline picks up the new period on its next tick.
func (a *App) UseProfile(p *store.Profile) error {
	if p == nil {
		return errors.New("nil profile")
	}
	if err := p.Params.Validate(); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}

	period := time.Duration(p.PeriodMs) * time.Millisecond
	if period <= 0 {
		period = DefaultPeriod
	}

	a.mu.Lock()
	a.params = p.Params
	a.period = period
	a.profileID = p.ID
	a.mu.Unlock()

	log.WithFields(log.Fields{
		"profile":  p.Name,
		"baseline": p.Params.BaselineEyeDistance,
		"period":   period,
	}).Info("Switched overlay profile")
	return nil
}

// UseDefaults drops the active profile and returns to the configured
// parameters and period.
func (a *App) UseDefaults() {
	a.mu.Lock()
	previous := a.profileID
	a.params = a.defaultParams
	a.period = a.defaultPeriod
	a.profileID = ""
	a.mu.Unlock()

	log.WithField("previous", previous).Info("Switched to configured overlay params")
}

// LoadActiveProfile applies the profile recorded as active in the store, if any.
func (a *App) LoadActiveProfile() error {
	if a.config.Store == nil {
		return nil
	}

	id, err := a.config.Store.Settings().Get(store.SettingActiveProfile)
	if errors.Is(err, store.ErrNotFound) || id == "" {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load active profile: %w", err)
	}

	p, err := a.config.Store.Profiles().GetByID(id)
	if err != nil {
		return fmt.Errorf("load active profile %s: %w", id, err)
	}

	return a.UseProfile(p)
}

// Start opens the camera and begins the detection pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	log.WithField("period", a.period).Info("Detection pipeline started")
	return nil
}

// Stop halts the detection pipeline and releases the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.camera.Close(); err != nil {
		log.WithError(err).Warn("Error closing camera")
	}

	a.motion.Close()

	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.WithError(err).Warn("Error closing detector")
		}
	}

	log.Info("Detection pipeline stopped")
}

// Running reports whether the pipeline goroutine is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Ingest runs the detection cycle body on landmark sets produced elsewhere,
// such as a face mesh running in the browser. It reports whether a new
// transform was committed.
func (a *App) Ingest(faces []detector.FaceLandmarks, width, height int) (overlay.Committed, bool) {
	a.ingested.Add(1)
	return a.apply(faces, width, height)
}

// apply computes and commits a transform from the first face. Zero faces or a
// face without the eye landmarks leaves the committed transform untouched.
func (a *App) apply(faces []detector.FaceLandmarks, width, height int) (overlay.Committed, bool) {
	if len(faces) == 0 {
		return overlay.Committed{}, false
	}

	t, ok := overlay.ComputeFace(&faces[0], width, height, a.Params())
	if !ok {
		log.WithField("points", len(faces[0].Points)).Debug("Face is missing eye landmarks, skipping")
		return overlay.Committed{}, false
	}

	c := a.slot.Commit(t)
	a.commits.Add(1)

	a.mu.RLock()
	callbacks := a.callbacks
	a.mu.RUnlock()
	for _, fn := range callbacks {
		fn(c)
	}

	return c, true
}

// Overlay returns the latest committed transform.
func (a *App) Overlay() (overlay.Committed, bool) {
	return a.slot.Latest()
}

// Slot returns the committed transform slot.
func (a *App) Slot() *overlay.Slot {
	return a.slot
}

// Stats returns a snapshot of the cycle counters.
func (a *App) Stats() Stats {
	return Stats{
		Cycles:   a.cycles.Load(),
		Skipped:  a.skipped.Load(),
		Commits:  a.commits.Load(),
		Ingested: a.ingested.Load(),
	}
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// MotionGate returns the motion gate.
func (a *App) MotionGate() *capture.MotionGate {
	return a.motion
}

// Detector returns the face detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

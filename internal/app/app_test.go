package app

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/overlay"
	"github.com/ayusman/tryon/internal/store"
)

func newTestApp(t *testing.T, s *store.Store) *App {
	t.Helper()
	a := New(Config{
		Store:           s,
		DetectorBackend: BackendMock,
		Params:          overlay.DefaultParams(),
	})
	t.Cleanup(a.Stop)
	return a
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_Defaults(t *testing.T) {
	a := New(Config{DetectorBackend: BackendMock})
	defer a.Stop()

	if a.Period() != DefaultPeriod {
		t.Errorf("Period() = %v, want %v", a.Period(), DefaultPeriod)
	}
	if a.Params() != overlay.DefaultParams() {
		t.Errorf("Params() = %+v, want defaults", a.Params())
	}
	if !a.IsEnabled() {
		t.Error("app should start enabled")
	}
	if _, ok := a.Detector().(*detector.MockDetector); !ok {
		t.Errorf("Detector() = %T, want *detector.MockDetector", a.Detector())
	}
	if _, ok := a.Overlay(); ok {
		t.Error("no transform should be committed before the first face")
	}
	if a.MotionGate().Enabled() {
		t.Error("motion gate should be disabled by default")
	}
}

func TestNew_InvalidParamsFallBack(t *testing.T) {
	p := overlay.DefaultParams()
	p.BaselineEyeDistance = -3

	a := New(Config{DetectorBackend: BackendMock, Params: p, Period: -time.Second})
	defer a.Stop()

	if a.Params() != overlay.DefaultParams() {
		t.Errorf("Params() = %+v, want defaults", a.Params())
	}
	if a.Period() != DefaultPeriod {
		t.Errorf("Period() = %v, want %v", a.Period(), DefaultPeriod)
	}
}

func TestApp_Ingest_CommitsTransform(t *testing.T) {
	a := newTestApp(t, nil)

	var seen []overlay.Committed
	a.RegisterCommitCallback(func(c overlay.Committed) {
		seen = append(seen, c)
	})

	c, ok := a.Ingest([]detector.FaceLandmarks{detector.FrontalFace()}, 640, 480)
	if !ok {
		t.Fatal("Ingest() should commit for a frontal face")
	}

	if math.Abs(c.Transform.Scale-1.0) > 1e-9 {
		t.Errorf("Scale = %f, want 1.0", c.Transform.Scale)
	}
	if c.Transform.Rotation != 0 {
		t.Errorf("Rotation = %f, want 0", c.Transform.Rotation)
	}
	if c.Version != 1 {
		t.Errorf("Version = %d, want 1", c.Version)
	}

	latest, ok := a.Overlay()
	if !ok || latest != c {
		t.Errorf("Overlay() = %+v, %v; want %+v", latest, ok, c)
	}

	if len(seen) != 1 || seen[0] != c {
		t.Errorf("commit callback saw %v", seen)
	}

	if st := a.Stats(); st.Ingested != 1 || st.Commits != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestApp_Ingest_ZeroFacesLeavesTransform(t *testing.T) {
	a := newTestApp(t, nil)

	first, ok := a.Ingest([]detector.FaceLandmarks{detector.TiltedFace(0.3)}, 640, 480)
	if !ok {
		t.Fatal("first Ingest() should commit")
	}

	if _, ok := a.Ingest(nil, 640, 480); ok {
		t.Error("Ingest() with zero faces should not commit")
	}

	short := detector.FaceLandmarks{Points: make([]detector.Point3D, 10)}
	if _, ok := a.Ingest([]detector.FaceLandmarks{short}, 640, 480); ok {
		t.Error("Ingest() with missing eye landmarks should not commit")
	}

	latest, _ := a.Overlay()
	if latest != first {
		t.Errorf("transform changed: got %+v, want %+v", latest, first)
	}
}

func TestApp_Ingest_UsesFirstFaceOnly(t *testing.T) {
	a := newTestApp(t, nil)

	far := detector.FrontalFace()
	near := *far.Scaled(2)

	c, ok := a.Ingest([]detector.FaceLandmarks{near, far}, 640, 480)
	if !ok {
		t.Fatal("Ingest() should commit")
	}
	if math.Abs(c.Transform.Scale-2.0) > 1e-9 {
		t.Errorf("Scale = %f, want 2.0 from the first face", c.Transform.Scale)
	}
}

func TestApp_UseProfile(t *testing.T) {
	a := newTestApp(t, nil)

	p := &store.Profile{
		ID:       "p1",
		Name:     "wide",
		Params:   overlay.DefaultParams(),
		PeriodMs: 50,
	}
	p.Params.BaselineEyeDistance = 70

	if err := a.UseProfile(p); err != nil {
		t.Fatalf("UseProfile() error = %v", err)
	}
	if a.Period() != 50*time.Millisecond {
		t.Errorf("Period() = %v, want 50ms", a.Period())
	}
	if a.ActiveProfileID() != "p1" {
		t.Errorf("ActiveProfileID() = %q, want p1", a.ActiveProfileID())
	}

	c, _ := a.Ingest([]detector.FaceLandmarks{detector.FrontalFace()}, 640, 480)
	if math.Abs(c.Transform.Scale-2.0) > 1e-9 {
		t.Errorf("Scale = %f, want 2.0 with halved baseline", c.Transform.Scale)
	}
}

func TestApp_UseDefaults(t *testing.T) {
	configured := overlay.DefaultParams()
	configured.OffsetY = -0.05
	a := New(Config{
		DetectorBackend: BackendMock,
		Params:          configured,
		Period:          80 * time.Millisecond,
	})
	defer a.Stop()

	p := &store.Profile{ID: "p1", Name: "wide", Params: overlay.DefaultParams(), PeriodMs: 50}
	p.Params.BaselineEyeDistance = 70
	if err := a.UseProfile(p); err != nil {
		t.Fatalf("UseProfile() error = %v", err)
	}

	a.UseDefaults()

	if a.ActiveProfileID() != "" {
		t.Errorf("ActiveProfileID() = %q, want empty", a.ActiveProfileID())
	}
	if a.Params() != configured {
		t.Errorf("Params() = %+v, want %+v", a.Params(), configured)
	}
	if a.Period() != 80*time.Millisecond {
		t.Errorf("Period() = %v, want 80ms", a.Period())
	}
}

func TestApp_Ingest_NonFiniteSkipped(t *testing.T) {
	a := newTestApp(t, nil)

	face := detector.NewFace(
		detector.Point3D{X: -1e308, Y: 220},
		detector.Point3D{X: 1e308, Y: 220},
		detector.Point3D{X: 320, Y: 215},
	)
	if _, ok := a.Ingest([]detector.FaceLandmarks{face}, 640, 480); ok {
		t.Error("overflowing landmarks should not commit")
	}
	if _, ok := a.Overlay(); ok {
		t.Error("slot should stay empty")
	}
	if got := a.Stats().Commits; got != 0 {
		t.Errorf("Commits = %d, want 0", got)
	}
}

func TestApp_UseProfile_Invalid(t *testing.T) {
	a := newTestApp(t, nil)

	if err := a.UseProfile(nil); err == nil {
		t.Error("UseProfile(nil) should fail")
	}

	p := &store.Profile{ID: "bad", Name: "bad", Params: overlay.Params{}}
	if err := a.UseProfile(p); !errors.Is(err, overlay.ErrInvalidParams) {
		t.Errorf("UseProfile() error = %v, want ErrInvalidParams", err)
	}

	if a.ActiveProfileID() != "" {
		t.Error("failed UseProfile should not change the active profile")
	}
}

func TestApp_LoadActiveProfile(t *testing.T) {
	s := newTestStore(t)
	a := newTestApp(t, s)

	if err := a.LoadActiveProfile(); err != nil {
		t.Fatalf("LoadActiveProfile() with no setting error = %v", err)
	}
	if a.ActiveProfileID() != "" {
		t.Error("no profile should be active")
	}

	p := &store.Profile{ID: "p1", Name: "round", Params: overlay.DefaultParams(), PeriodMs: 200}
	if err := s.Profiles().Create(p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	s.Settings().Set(store.SettingActiveProfile, "p1")

	if err := a.LoadActiveProfile(); err != nil {
		t.Fatalf("LoadActiveProfile() error = %v", err)
	}
	if a.ActiveProfileID() != "p1" {
		t.Errorf("ActiveProfileID() = %q, want p1", a.ActiveProfileID())
	}
	if a.Period() != 200*time.Millisecond {
		t.Errorf("Period() = %v, want 200ms", a.Period())
	}

	s.Settings().Set(store.SettingActiveProfile, "ghost")
	if err := a.LoadActiveProfile(); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("LoadActiveProfile() error = %v, want ErrNotFound", err)
	}
}

func TestApp_SetEnabled(t *testing.T) {
	a := newTestApp(t, nil)

	a.SetEnabled(false)
	if a.IsEnabled() {
		t.Error("IsEnabled() should be false")
	}

	a.cycle()
	if a.Stats().Cycles != 0 {
		t.Error("disabled app should not run cycles")
	}
}

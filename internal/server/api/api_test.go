package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/overlay"
	"github.com/ayusman/tryon/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// fakePipeline is an in-memory Pipeline that commits through a real Slot.
type fakePipeline struct {
	mu     sync.Mutex
	params overlay.Params
	period time.Duration
	active string
	slot   *overlay.Slot
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		params: overlay.DefaultParams(),
		period: 120 * time.Millisecond,
		slot:   overlay.NewSlot(),
	}
}

func (f *fakePipeline) UseProfile(p *store.Profile) error {
	if err := p.Params.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = p.Params
	f.period = time.Duration(p.PeriodMs) * time.Millisecond
	f.active = p.ID
	return nil
}

func (f *fakePipeline) UseDefaults() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = overlay.DefaultParams()
	f.period = 120 * time.Millisecond
	f.active = ""
}

func (f *fakePipeline) ActiveProfileID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakePipeline) Params() overlay.Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

func (f *fakePipeline) Period() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.period
}

func (f *fakePipeline) Ingest(faces []detector.FaceLandmarks, width, height int) (overlay.Committed, bool) {
	if len(faces) == 0 {
		return overlay.Committed{}, false
	}
	t, ok := overlay.ComputeFace(&faces[0], width, height, f.Params())
	if !ok {
		return overlay.Committed{}, false
	}
	return f.slot.Commit(t), true
}

func (f *fakePipeline) Overlay() (overlay.Committed, bool) {
	return f.slot.Latest()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doRaw(h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

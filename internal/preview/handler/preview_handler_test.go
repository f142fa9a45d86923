package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tourflow/tourflow/pkg/analytics"
	"github.com/tourflow/tourflow/pkg/embed"
	"github.com/tourflow/tourflow/pkg/embedstore"
	"github.com/tourflow/tourflow/pkg/playback"
	"github.com/tourflow/tourflow/pkg/tour"
)

const onboardingYAML = `
id: onboarding
name: Onboarding
published: true
steps:
  - id: welcome
    title: Welcome
    order: 0
  - id: projects
    title: Projects
    target: "#projects"
    order: 1
`

func tourDir(t *testing.T) *tour.Loader {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "onboarding.yaml"), []byte(onboardingYAML), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	loader := tour.NewLoader(dir)
	if _, err := loader.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	return loader
}

type savedConfigs map[string]embed.Config

func (s savedConfigs) GetByID(_ context.Context, id string) (*embedstore.Record, error) {
	cfg, ok := s[id]
	if !ok {
		return nil, embedstore.ErrNotFound
	}
	rec := embedstore.NewRecord(cfg)
	rec.ID = id
	return rec, nil
}

type forwarded struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (f *forwarded) Emit(ev analytics.Event) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

func (f *forwarded) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func configFor(tourID string) embed.Config {
	cfg := embed.Default()
	cfg.TourID = tourID
	cfg.Name = "Preview"
	return cfg
}

func newServer(t *testing.T, opts Options) (*PreviewHandler, http.Handler) {
	t.Helper()
	if opts.Source == nil {
		opts.Source = tourDir(t)
	}
	h := NewPreviewHandler(opts)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

func call(t *testing.T, mux http.Handler, method, target string, body any) (*httptest.ResponseRecorder, PreviewResponse) {
	t.Helper()
	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = string(raw)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(payload)))
	var resp PreviewResponse
	if rec.Code < 300 && rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

func TestPreviewWalkthrough(t *testing.T) {
	fwd := &forwarded{}
	_, mux := newServer(t, Options{Forward: fwd})

	cfg := configFor("onboarding")
	rec, created := call(t, mux, http.MethodPost, "/api/v1/previews", CreateRequest{Config: &cfg})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !created.Visible || created.View == nil || created.View.Step.ID != "welcome" {
		t.Fatalf("first step not shown: %+v", created)
	}
	if created.Session == nil || created.Session.State != playback.StateActive {
		t.Fatalf("session = %+v, want ACTIVE", created.Session)
	}

	base := "/api/v1/previews/" + created.ID

	rec, _ = call(t, mux, http.MethodPost, base+"/prev", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("prev on first step status = %d, want 409", rec.Code)
	}

	_, resp := call(t, mux, http.MethodPost, base+"/next", nil)
	if resp.View == nil || resp.View.Step.ID != "projects" {
		t.Fatalf("second step not shown: %+v", resp)
	}

	_, resp = call(t, mux, http.MethodPost, base+"/next", nil)
	if resp.Session.State != playback.StateCompleted || resp.Visible {
		t.Fatalf("after last next: state %s visible %v", resp.Session.State, resp.Visible)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"/report", nil))
	var report analytics.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Metrics.TourStarts != 1 || report.Metrics.TourCompletions != 1 || report.Metrics.StepCompletions != 1 {
		t.Errorf("metrics = %+v", report.Metrics)
	}
	if report.CompletionRate != 100 {
		t.Errorf("completion rate = %v, want 100", report.CompletionRate)
	}
	if fwd.count() != report.Metrics.TotalEvents {
		t.Errorf("forwarded %d events, report has %d", fwd.count(), report.Metrics.TotalEvents)
	}
}

func TestPreviewPauseResume(t *testing.T) {
	_, mux := newServer(t, Options{})
	cfg := configFor("onboarding")
	_, created := call(t, mux, http.MethodPost, "/api/v1/previews", CreateRequest{Config: &cfg})
	base := "/api/v1/previews/" + created.ID

	_, resp := call(t, mux, http.MethodPost, base+"/pause", nil)
	if resp.Session.State != playback.StatePaused {
		t.Fatalf("state = %s, want PAUSED", resp.Session.State)
	}
	rec, _ := call(t, mux, http.MethodPost, base+"/next", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("next while paused status = %d, want 409", rec.Code)
	}
	_, resp = call(t, mux, http.MethodPost, base+"/resume", nil)
	if resp.Session.State != playback.StateActive {
		t.Errorf("state = %s, want ACTIVE", resp.Session.State)
	}
	rec, _ = call(t, mux, http.MethodPost, base+"/dance", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d, want 400", rec.Code)
	}
}

func TestPreviewSkipRespectsFeature(t *testing.T) {
	_, mux := newServer(t, Options{})
	cfg := configFor("onboarding")
	cfg.Features.AllowSkip = false
	_, created := call(t, mux, http.MethodPost, "/api/v1/previews", CreateRequest{Config: &cfg})

	rec, _ := call(t, mux, http.MethodPost, "/api/v1/previews/"+created.ID+"/skip", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("skip status = %d, want 403", rec.Code)
	}
}

func TestPreviewFromSavedConfig(t *testing.T) {
	_, mux := newServer(t, Options{Configs: savedConfigs{"cfg-1": configFor("onboarding")}})

	rec, created := call(t, mux, http.MethodPost, "/api/v1/previews", CreateRequest{ConfigID: "cfg-1"})
	if rec.Code != http.StatusCreated || created.TourID != "onboarding" {
		t.Fatalf("create status = %d, resp = %+v", rec.Code, created)
	}

	rec, _ = call(t, mux, http.MethodPost, "/api/v1/previews", CreateRequest{ConfigID: "missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing config status = %d, want 404", rec.Code)
	}
}

func TestPreviewCreateErrors(t *testing.T) {
	h, mux := newServer(t, Options{})

	rec, _ := call(t, mux, http.MethodPost, "/api/v1/previews", CreateRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty request status = %d, want 400", rec.Code)
	}

	bad := configFor("onboarding")
	bad.Theme = "neon"
	rec, _ = call(t, mux, http.MethodPost, "/api/v1/previews", CreateRequest{Config: &bad})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid config status = %d, want 400", rec.Code)
	}

	unknown := configFor("nope")
	rec, _ = call(t, mux, http.MethodPost, "/api/v1/previews", CreateRequest{Config: &unknown})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown tour status = %d, want 404", rec.Code)
	}

	if h.Len() != 0 {
		t.Errorf("failed creates left %d previews", h.Len())
	}
}

func TestPreviewDelete(t *testing.T) {
	h, mux := newServer(t, Options{})
	cfg := configFor("onboarding")
	_, created := call(t, mux, http.MethodPost, "/api/v1/previews", CreateRequest{Config: &cfg})
	base := "/api/v1/previews/" + created.ID

	rec, _ := call(t, mux, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if h.Len() != 0 {
		t.Errorf("preview still stored")
	}
	rec, _ = call(t, mux, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestReaperRemovesExpiredPreviews(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	h, mux := newServer(t, Options{TTL: time.Minute, Now: clock})

	cfg := configFor("onboarding")
	_, created := call(t, mux, http.MethodPost, "/api/v1/previews", CreateRequest{Config: &cfg})

	if n := h.reapStale(); n != 0 {
		t.Fatalf("reaped %d fresh previews", n)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	if n := h.reapStale(); n != 1 {
		t.Fatalf("reaped %d previews, want 1", n)
	}
	rec, _ := call(t, mux, http.MethodGet, "/api/v1/previews/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expired preview status = %d, want 404", rec.Code)
	}
}

// Package handler serves dashboard live previews: headless widget sessions
// driven over REST so the editor can step through a tour before publishing.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"
	"github.com/rs/xid"

	"github.com/tourflow/tourflow/pkg/analytics"
	"github.com/tourflow/tourflow/pkg/embed"
	"github.com/tourflow/tourflow/pkg/embedstore"
	"github.com/tourflow/tourflow/pkg/playback"
	"github.com/tourflow/tourflow/pkg/resolver"
	"github.com/tourflow/tourflow/pkg/tour"
	"github.com/tourflow/tourflow/pkg/widget"
)

const (
	defaultTTL         = 30 * time.Minute
	reaperInterval     = 1 * time.Minute
	maxRequestBodySize = 1 << 20 // 1 MiB
)

// ConfigStore looks up saved embed configs.
type ConfigStore interface {
	GetByID(ctx context.Context, id string) (*embedstore.Record, error)
}

// Options configure a PreviewHandler.
type Options struct {
	Source  tour.Source
	Configs ConfigStore
	// Forward receives every preview event in addition to the per-preview
	// report. Optional.
	Forward        playback.Emitter
	Policy         playback.TimeoutPolicy
	ResolveTimeout time.Duration
	IdleTimeout    time.Duration
	TTL            time.Duration
	Pool           workerpool.WorkerPool
	Now            func() time.Time
}

type previewSession struct {
	id        string
	cfg       embed.Config
	handle    *widget.Handle
	screen    *widget.Recorder
	events    *analytics.RecordingSink
	createdAt time.Time
}

// tee records events for the preview report and forwards them on.
type tee struct {
	sink    *analytics.RecordingSink
	forward playback.Emitter
}

func (t tee) Emit(ev analytics.Event) {
	_ = t.sink.LogEvent(context.Background(), ev)
	if t.forward != nil {
		t.forward.Emit(ev)
	}
}

func (t tee) Release(sessionID string) {
	if r, ok := t.forward.(interface{ Release(string) }); ok {
		r.Release(sessionID)
	}
}

// PreviewHandler holds live preview sessions.
type PreviewHandler struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*previewSession
}

// NewPreviewHandler creates a preview handler.
func NewPreviewHandler(opts Options) *PreviewHandler {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PreviewHandler{
		opts:     opts,
		sessions: make(map[string]*previewSession),
	}
}

// RegisterRoutes registers all preview routes on the given mux.
func (h *PreviewHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/previews", h.Create)
	mux.HandleFunc("GET /api/v1/previews/{id}", h.Get)
	mux.HandleFunc("GET /api/v1/previews/{id}/report", h.Report)
	mux.HandleFunc("POST /api/v1/previews/{id}/{action}", h.Action)
	mux.HandleFunc("DELETE /api/v1/previews/{id}", h.Delete)
}

// StartReaper begins the background preview TTL reaper.
func (h *PreviewHandler) StartReaper(ctx context.Context) {
	reap := func() {
		ticker := time.NewTicker(reaperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.reapStale()
			}
		}
	}
	if h.opts.Pool != nil {
		if err := h.opts.Pool.Submit(ctx, reap); err == nil {
			return
		}
	}
	go reap()
}

func (h *PreviewHandler) reapStale() int {
	now := h.opts.Now()
	var stale []*previewSession
	h.mu.Lock()
	for id, ps := range h.sessions {
		if now.Sub(ps.createdAt) > h.opts.TTL {
			stale = append(stale, ps)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, ps := range stale {
		slog.Warn("reaping stale preview session", slog.String("preview_id", ps.id))
		ps.handle.Destroy()
	}
	return len(stale)
}

// Len returns the number of live previews.
func (h *PreviewHandler) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (h *PreviewHandler) lookup(w http.ResponseWriter, r *http.Request) (*previewSession, bool) {
	h.mu.RLock()
	ps, ok := h.sessions[r.PathValue("id")]
	h.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "preview not found")
	}
	return ps, ok
}

func (h *PreviewHandler) resolveConfig(ctx context.Context, req CreateRequest) (embed.Config, int, error) {
	if req.Config != nil {
		return *req.Config, 0, nil
	}
	if req.ConfigID == "" {
		return embed.Config{}, http.StatusBadRequest, errors.New("config or configId is required")
	}
	if h.opts.Configs == nil {
		return embed.Config{}, http.StatusBadRequest, errors.New("saved configs are not available")
	}
	rec, err := h.opts.Configs.GetByID(ctx, req.ConfigID)
	if errors.Is(err, embedstore.ErrNotFound) {
		return embed.Config{}, http.StatusNotFound, err
	}
	if err != nil {
		return embed.Config{}, http.StatusInternalServerError, errors.New("failed to load embed config")
	}
	return rec.Embed(), 0, nil
}

// Create handles POST /api/v1/previews. The preview ignores the config's
// triggers and targeting and starts the tour immediately.
func (h *PreviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, status, err := h.resolveConfig(r.Context(), req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	cfg.Triggers = nil
	cfg.Targeting = nil
	cfg.Features.AutoStart = false

	ps := &previewSession{
		id:        xid.New().String(),
		cfg:       cfg,
		screen:    &widget.Recorder{},
		events:    analytics.NewRecordingSink(),
		createdAt: h.opts.Now(),
	}

	// The preview outlives the request; Delete or the reaper ends it.
	handle, err := widget.Init(context.Background(), cfg, widget.Options{
		Registry:       tour.NewRegistry(h.opts.Source),
		Emitter:        tee{sink: ps.events, forward: h.opts.Forward},
		Resolver:       resolver.New(resolver.AlwaysPresent(), resolver.Config{}),
		Renderer:       ps.screen,
		Signals:        req.Signals(),
		Policy:         h.opts.Policy,
		ResolveTimeout: h.opts.ResolveTimeout,
		IdleTimeout:    h.opts.IdleTimeout,
		Pool:           h.opts.Pool,
		Now:            h.opts.Now,
	})
	if err != nil {
		var ve *embed.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Reason, Field: ve.Field})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ps.handle = handle

	if !handle.Start() {
		loadErr := handle.Err()
		handle.Destroy()
		if errors.Is(loadErr, tour.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tour not found")
			return
		}
		var me *tour.MalformedError
		if errors.As(loadErr, &me) {
			writeError(w, http.StatusUnprocessableEntity, me.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "preview could not start")
		return
	}

	h.mu.Lock()
	h.sessions[ps.id] = ps
	h.mu.Unlock()

	slog.InfoContext(r.Context(), "preview started",
		slog.String("preview_id", ps.id), slog.String("tour_id", cfg.TourID))
	writeJSON(w, http.StatusCreated, toResponse(ps))
}

// Get handles GET /api/v1/previews/{id}
func (h *PreviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	ps, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(ps))
}

// Action handles POST /api/v1/previews/{id}/{action}
func (h *PreviewHandler) Action(w http.ResponseWriter, r *http.Request) {
	ps, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var err error
	switch action := r.PathValue("action"); action {
	case "next":
		err = ps.handle.Next()
	case "prev":
		err = ps.handle.Prev()
	case "skip":
		err = ps.handle.Skip()
	case "close":
		err = ps.handle.Close()
	case "pause":
		err = withPlayer(ps, (*playback.Player).Pause)
	case "resume":
		err = withPlayer(ps, (*playback.Player).Resume)
	case "restart":
		if !ps.handle.Start() {
			err = playback.ErrAlreadyStarted
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown action "+action)
		return
	}
	if err != nil {
		writeError(w, actionStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResponse(ps))
}

func withPlayer(ps *previewSession, fn func(*playback.Player) error) error {
	p := ps.handle.Player()
	if p == nil {
		return playback.ErrNotActive
	}
	return fn(p)
}

func actionStatus(err error) int {
	switch {
	case errors.Is(err, playback.ErrSkipDisabled):
		return http.StatusForbidden
	case errors.Is(err, playback.ErrTerminalSession),
		errors.Is(err, playback.ErrNotActive),
		errors.Is(err, playback.ErrNotPaused),
		errors.Is(err, playback.ErrFirstStep),
		errors.Is(err, playback.ErrAlreadyStarted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Report handles GET /api/v1/previews/{id}/report
func (h *PreviewHandler) Report(w http.ResponseWriter, r *http.Request) {
	ps, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analytics.Summarize(ps.events.Events()))
}

// Delete handles DELETE /api/v1/previews/{id}
func (h *PreviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.mu.Lock()
	ps, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "preview not found")
		return
	}
	ps.handle.Destroy()
	w.WriteHeader(http.StatusNoContent)
}

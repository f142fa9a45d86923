package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tourflow/tourflow/pkg/embed"
	"github.com/tourflow/tourflow/pkg/embedstore"
)

const maxRequestBodySize = 1 << 20 // 1 MiB

// Store is the persistence the handler needs.
type Store interface {
	Create(ctx context.Context, rec *embedstore.Record) error
	GetByID(ctx context.Context, id string) (*embedstore.Record, error)
	List(ctx context.Context) ([]embedstore.Record, error)
	ListActiveByTour(ctx context.Context, tourID string) ([]embedstore.Record, error)
	Update(ctx context.Context, rec *embedstore.Record) error
	Delete(ctx context.Context, id string) error
}

// Handler provides REST endpoints for embed configurations.
type Handler struct {
	store  Store
	origin string
}

// NewHandler creates a handler. origin is the public base URL serving
// embed.js, used when a config has no apiUrl.
func NewHandler(store Store, origin string) *Handler {
	return &Handler{store: store, origin: origin}
}

// RegisterRoutes registers all embed config routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/embed-configs", h.Create)
	mux.HandleFunc("GET /api/v1/embed-configs", h.List)
	mux.HandleFunc("POST /api/v1/embed-configs/import", h.Import)
	mux.HandleFunc("GET /api/v1/embed-configs/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/embed-configs/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/embed-configs/{id}", h.Delete)
	mux.HandleFunc("GET /api/v1/embed-configs/{id}/export", h.Export)
	mux.HandleFunc("GET /api/v1/embed-configs/{id}/snippet", h.Snippet)
	mux.HandleFunc("GET /api/v1/embed-configs/presets", h.Presets)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeValidation(w http.ResponseWriter, err error) {
	var ve *embed.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Reason, Field: ve.Field})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func toResponse(rec *embedstore.Record) ConfigResponse {
	return ConfigResponse{
		ID:         rec.ID,
		TourID:     rec.TourID,
		Name:       rec.Name,
		Config:     rec.Embed(),
		IsActive:   rec.IsActive,
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
		ModifiedAt: rec.ModifiedAt.Format(time.RFC3339),
	}
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*embedstore.Record, bool) {
	rec, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, embedstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "embed config not found")
		return nil, false
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "load embed config failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load embed config")
		return nil, false
	}
	return rec, true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, cfg embed.Config) {
	rec := embedstore.NewRecord(cfg)
	if err := h.store.Create(r.Context(), rec); err != nil {
		slog.ErrorContext(r.Context(), "create embed config failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create embed config")
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(rec))
}

// Create handles POST /api/v1/embed-configs
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	cfg := embed.Default()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := cfg.Validate(); err != nil {
		writeValidation(w, err)
		return
	}
	h.create(w, r, cfg)
}

// Import handles POST /api/v1/embed-configs/import with a downloaded
// configuration file as the body.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	cfg, err := embed.Import(r.Body)
	if err != nil {
		writeValidation(w, err)
		return
	}
	cfg.ID = ""
	h.create(w, r, cfg)
}

// List handles GET /api/v1/embed-configs. With ?tourId= only the active
// configs of that tour are returned.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var (
		recs []embedstore.Record
		err  error
	)
	if tourID := r.URL.Query().Get("tourId"); tourID != "" {
		recs, err = h.store.ListActiveByTour(r.Context(), tourID)
	} else {
		recs, err = h.store.List(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list embed configs")
		return
	}
	resp := make([]ConfigResponse, 0, len(recs))
	for i := range recs {
		resp = append(resp, toResponse(&recs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/embed-configs/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// Update handles PUT /api/v1/embed-configs/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, ok := h.load(w, r)
	if !ok {
		return
	}

	if len(req.Config) > 0 {
		cfg := rec.Embed()
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid config")
			return
		}
		if err := cfg.Validate(); err != nil {
			writeValidation(w, err)
			return
		}
		cfg.ID = rec.ID
		rec.Config = embedstore.ConfigJSON(cfg)
		rec.TourID = cfg.TourID
		rec.Name = cfg.Name
	}
	if req.IsActive != nil {
		rec.IsActive = *req.IsActive
	}

	if err := h.store.Update(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update embed config")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// Delete handles DELETE /api/v1/embed-configs/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, embedstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "embed config not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete embed config")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/v1/embed-configs/{id}/export as a file download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r)
	if !ok {
		return
	}
	cfg := rec.Embed()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", embed.Filename(cfg)))
	if err := embed.Export(w, cfg); err != nil {
		slog.ErrorContext(r.Context(), "export embed config failed", slog.String("error", err.Error()))
	}
}

// Snippet handles GET /api/v1/embed-configs/{id}/snippet?format=html|react|vue&minified=bool
func (h *Handler) Snippet(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w, r)
	if !ok {
		return
	}

	format := embed.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = embed.FormatHTML
	}
	minified, _ := strconv.ParseBool(r.URL.Query().Get("minified"))

	cfg := rec.Embed()
	opts := embed.SnippetOptions{Minified: minified}
	if cfg.APIURL == "" {
		opts.Origin = h.origin
	}
	out, err := embed.Snippet(cfg, format, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// Presets handles GET /api/v1/embed-configs/presets
func (h *Handler) Presets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, embed.Presets())
}

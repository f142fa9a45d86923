package handler

import (
	"time"

	"github.com/tourflow/tourflow/pkg/embed"
	"github.com/tourflow/tourflow/pkg/playback"
	"github.com/tourflow/tourflow/pkg/trigger"
)

// CreateRequest starts a preview from an inline config or a saved one.
type CreateRequest struct {
	Config    *embed.Config `json:"config,omitempty"`
	ConfigID  string        `json:"configId,omitempty"`
	URL       string        `json:"url,omitempty"`
	UserAgent string        `json:"userAgent,omitempty"`
}

// Signals returns the page facts the preview pretends to run on.
func (r CreateRequest) Signals() trigger.Signals {
	return trigger.Signals{
		URL:       r.URL,
		UserAgent: r.UserAgent,
		Mobile:    trigger.DetectMobile(r.UserAgent),
	}
}

// PreviewResponse is the API response for a preview.
type PreviewResponse struct {
	ID        string             `json:"id"`
	TourID    string             `json:"tourId"`
	Visible   bool               `json:"visible"`
	View      *playback.View     `json:"view,omitempty"`
	Session   *playback.Snapshot `json:"session,omitempty"`
	CreatedAt string             `json:"createdAt"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func toResponse(ps *previewSession) PreviewResponse {
	resp := PreviewResponse{
		ID:        ps.id,
		TourID:    ps.cfg.TourID,
		CreatedAt: ps.createdAt.Format(time.RFC3339),
	}
	if view, visible := ps.screen.Current(); visible {
		resp.Visible = true
		resp.View = &view
	}
	if p := ps.handle.Player(); p != nil {
		snap := p.Snapshot()
		resp.Session = &snap
	}
	return resp
}

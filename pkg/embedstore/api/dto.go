package api

import (
	"encoding/json"

	"github.com/tourflow/tourflow/pkg/embed"
)

// UpdateRequest is the request body for updating an embed config. Config
// fields present in the body overwrite the stored ones.
type UpdateRequest struct {
	Config   json.RawMessage `json:"config,omitempty"`
	IsActive *bool           `json:"is_active,omitempty"`
}

// ConfigResponse is the API response for an embed config.
type ConfigResponse struct {
	ID         string       `json:"id"`
	TourID     string       `json:"tour_id"`
	Name       string       `json:"name"`
	Config     embed.Config `json:"config"`
	IsActive   bool         `json:"is_active"`
	CreatedAt  string       `json:"created_at"`
	ModifiedAt string       `json:"modified_at"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

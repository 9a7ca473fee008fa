// Package rest exposes the search and admin HTTP API.
package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	"forumsearch/internal/indexer/rebuild"
	"forumsearch/internal/search/query"
)

// Default request timeouts.
const (
	DefaultRequestTimeout = 15 * time.Second
	AdminRequestTimeout   = 30 * time.Second
)

// APIError represents a structured error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Handler serves the HTTP API.
type Handler struct {
	query        *query.Service
	orchestrator *rebuild.Orchestrator
	jwtSecret    []byte
	logger       *slog.Logger

	decoder  *schema.Decoder
	validate *validator.Validate
}

// NewHandler builds the API handler. An empty jwtSecret disables the admin
// endpoints entirely.
func NewHandler(querySvc *query.Service, orchestrator *rebuild.Orchestrator, jwtSecret string, logger *slog.Logger) *Handler {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return &Handler{
		query:        querySvc,
		orchestrator: orchestrator,
		jwtSecret:    []byte(jwtSecret),
		logger:       logger.With("component", "rest"),
		decoder:      decoder,
		validate:     validator.New(),
	}
}

// RegisterRoutes attaches all routes to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/search", withTimeout(h.handleSearch, DefaultRequestTimeout))

	mux.HandleFunc("POST /v1/admin/reindex", withTimeout(h.adminOnly(h.handleStartReindex), AdminRequestTimeout))
	mux.HandleFunc("GET /v1/admin/reindex", withTimeout(h.adminOnly(h.handleListReindex), AdminRequestTimeout))
	mux.HandleFunc("GET /v1/admin/reindex/{id}", withTimeout(h.adminOnly(h.handleGetReindex), AdminRequestTimeout))
	mux.HandleFunc("DELETE /v1/admin/reindex/{id}", withTimeout(h.adminOnly(h.handleCancelReindex), AdminRequestTimeout))

	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIError{Code: code, Message: message}); err != nil {
		slog.Warn("failed to encode error response", "error", err)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode JSON response", "error", err)
	}
}

// withTimeout wraps a handler with a context timeout.
func withTimeout(next http.HandlerFunc, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/miktsoan/core/internal/auth"
	"github.com/miktsoan/core/internal/domain"
	"github.com/miktsoan/core/internal/state"
	"github.com/miktsoan/core/internal/store"
)

// RequestsHandler exposes service request documents. Matching, quoting and
// contracts live outside this core.
type RequestsHandler struct {
	repo     store.Repository
	appState *state.Container
}

// NewRequestsHandler creates the requests handler.
func NewRequestsHandler(repo store.Repository, appState *state.Container) *RequestsHandler {
	return &RequestsHandler{repo: repo, appState: appState}
}

// RegisterRoutes mounts the request endpoints.
func (h *RequestsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/requests", h.createRequest)
	r.Get("/api/requests/{id}", h.getRequest)
}

type createRequestBody struct {
	Category    string              `json:"category"`
	Description string              `json:"description"`
	Images      []string            `json:"images,omitempty"`
	Location    *domain.GeoLocation `json:"location,omitempty"`
}

func (h *RequestsHandler) createRequest(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "not logged in")
		return
	}

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Category == "" || body.Description == "" {
		Error(w, http.StatusBadRequest, "category and description are required")
		return
	}

	req := &domain.ServiceRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		Category:    body.Category,
		Description: body.Description,
		Images:      body.Images,
		Status:      domain.RequestOpen,
		Location:    body.Location,
		CreatedAt:   time.Now(),
	}

	if err := h.repo.CreateRequest(r.Context(), req); err != nil {
		slog.Error("Failed to create service request", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create request")
		return
	}

	h.appState.AppendHistory(r.Context(), domain.ActionCreateRequest, map[string]any{
		"requestId": req.ID,
		"category":  req.Category,
	})

	JSON(w, http.StatusCreated, req)
}

func (h *RequestsHandler) getRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.repo.GetRequest(r.Context(), id)
	if err != nil {
		slog.Error("Failed to load service request", "error", err, "request_id", id)
		Error(w, http.StatusInternalServerError, "failed to load request")
		return
	}
	if req == nil {
		Error(w, http.StatusNotFound, "request not found")
		return
	}

	JSON(w, http.StatusOK, req)
}

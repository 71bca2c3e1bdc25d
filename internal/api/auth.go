package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/miktsoan/core/internal/auth"
	"github.com/miktsoan/core/internal/domain"
	"github.com/miktsoan/core/internal/state"
)

// AuthHandler exposes the challenge flow over HTTP.
type AuthHandler struct {
	svc      *auth.Service
	appState *state.Container
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(svc *auth.Service, appState *state.Container) *AuthHandler {
	return &AuthHandler{svc: svc, appState: appState}
}

// RegisterRoutes mounts the auth endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/auth/otp", h.requestOTP)
	r.Post("/api/auth/verify", h.verifyOTP)
	r.Post("/api/logout", h.logout)
}

type otpRequest struct {
	Phone string `json:"phone"`
}

func (h *AuthHandler) requestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.svc.RequestChallenge(r.Context(), req.Phone)
	switch {
	case errors.Is(err, auth.ErrInvalidPhone):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrRateLimited):
		Error(w, http.StatusTooManyRequests, err.Error())
	case err != nil:
		slog.Error("Challenge request failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to send code")
	default:
		JSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

type verifyRequest struct {
	Phone    string          `json:"phone"`
	Code     string          `json:"code"`
	Role     domain.Role     `json:"role"`
	Language domain.Language `json:"language"`
}

type verifyResponse struct {
	Token string              `json:"token"`
	User  *domain.UserProfile `json:"user"`
}

func (h *AuthHandler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleUser
	}
	if !req.Role.Valid() {
		Error(w, http.StatusBadRequest, "unknown role")
		return
	}
	if req.Language == "" {
		req.Language = domain.DefaultLanguage
	}

	user, token, err := h.svc.VerifyChallenge(r.Context(), req.Phone, req.Code, req.Role, req.Language)
	switch {
	case errors.Is(err, auth.ErrInvalidCode):
		Error(w, http.StatusBadRequest, "Invalid Code")
	case err != nil:
		slog.Error("Challenge verification failed", "error", err)
		Error(w, http.StatusInternalServerError, "verification failed")
	default:
		JSON(w, http.StatusOK, verifyResponse{Token: token, User: user})
	}
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.appState.Logout(r.Context())
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/miktsoan/core/internal/auth"
	"github.com/miktsoan/core/internal/domain"
	"github.com/miktsoan/core/internal/state"
)

// requestRepo extends memRepo with an in-memory request document table.
type requestRepo struct {
	*memRepo
	requests map[string]*domain.ServiceRequest
}

func newRequestRepo() *requestRepo {
	return &requestRepo{memRepo: newMemRepo(), requests: make(map[string]*domain.ServiceRequest)}
}

func (m *requestRepo) CreateRequest(_ context.Context, req *domain.ServiceRequest) error {
	copied := *req
	m.requests[req.ID] = &copied
	return nil
}

func (m *requestRepo) GetRequest(_ context.Context, id string) (*domain.ServiceRequest, error) {
	return m.requests[id], nil
}

func newRequestsRouter(t *testing.T) (*chi.Mux, *auth.TokenIssuer, *requestRepo) {
	t.Helper()

	repo := newRequestRepo()
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)

	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(tokens))
		NewRequestsHandler(repo, state.New(nil)).RegisterRoutes(pr)
	})
	return r, tokens, repo
}

func TestCreateRequestRequiresToken(t *testing.T) {
	t.Parallel()

	r, _, _ := newRequestsRouter(t)

	w := postJSON(t, r, "/api/requests", map[string]string{
		"category": "plumbing", "description": "leaking sink",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/requests", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", w.Code)
	}
}

func TestCreateAndGetRequest(t *testing.T) {
	t.Parallel()

	r, tokens, repo := newRequestsRouter(t)

	token, err := tokens.Issue("u_0501234567", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	body, _ := json.Marshal(map[string]any{
		"category":    "plumbing",
		"description": "leaking sink under the kitchen counter",
		"images":      []string{"img1.jpg"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/requests", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}

	var created domain.ServiceRequest
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.UserID != "u_0501234567" {
		t.Errorf("expected request bound to token identity, got %q", created.UserID)
	}
	if created.Status != domain.RequestOpen {
		t.Errorf("expected open status, got %q", created.Status)
	}
	if _, ok := repo.requests[created.ID]; !ok {
		t.Fatal("expected request persisted")
	}

	get := httptest.NewRequest(http.MethodGet, "/api/requests/"+created.ID, nil)
	get.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, get)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var fetched domain.ServiceRequest
	if err := json.NewDecoder(w.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if fetched.ID != created.ID || fetched.Description != created.Description {
		t.Fatalf("round-trip mismatch: %+v vs %+v", fetched, created)
	}
}

func TestCreateRequestValidatesBody(t *testing.T) {
	t.Parallel()

	r, tokens, _ := newRequestsRouter(t)

	token, err := tokens.Issue("u_0501234567", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	body, _ := json.Marshal(map[string]string{"category": "plumbing"})
	req := httptest.NewRequest(http.MethodPost, "/api/requests", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing description, got %d", w.Code)
	}
}

func TestGetRequestNotFound(t *testing.T) {
	t.Parallel()

	r, tokens, _ := newRequestsRouter(t)

	token, err := tokens.Issue("u_0501234567", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/requests/nope", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

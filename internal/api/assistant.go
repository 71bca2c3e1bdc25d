package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/miktsoan/core/internal/assistant"
	"github.com/miktsoan/core/internal/chat"
)

// AssistantHandler exposes the AI conversation surface over HTTP.
type AssistantHandler struct {
	conv *chat.Conversation
}

// NewAssistantHandler creates the assistant handler.
func NewAssistantHandler(conv *chat.Conversation) *AssistantHandler {
	return &AssistantHandler{conv: conv}
}

// RegisterRoutes mounts the assistant endpoints.
func (h *AssistantHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/assistant/chat", h.sendTurn)
	r.Get("/api/assistant/messages", h.listMessages)
}

type assistantRequest struct {
	Text      string `json:"text"`
	ImageData string `json:"image_data,omitempty"` // base64
	ImageMIME string `json:"image_mime,omitempty"`
}

type assistantResponse struct {
	Reply string `json:"reply"`
}

func (h *AssistantHandler) sendTurn(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var att *assistant.Attachment
	if req.ImageData != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageData)
		if err != nil {
			Error(w, http.StatusBadRequest, "invalid image encoding")
			return
		}
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		att = &assistant.Attachment{Data: data, MIMEType: mime}
	}

	if req.Text == "" && att == nil {
		Error(w, http.StatusBadRequest, "empty message")
		return
	}

	reply := h.conv.SendToAssistant(r.Context(), req.Text, att)
	JSON(w, http.StatusOK, assistantResponse{Reply: reply})
}

func (h *AssistantHandler) listMessages(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.conv.Messages())
}

package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/nova-companion/internal/model/chat"
	"github.com/zhouzirui/nova-companion/pkg/utils"
)

// MaxMessageLength bounds a chat message in characters.
const MaxMessageLength = 4000

// Replier answers a user message and records the exchange.
type Replier interface {
	Reply(ctx context.Context, message string, origin chat.Origin) chat.Reply
}

// Handler serves text chat.
type Handler struct {
	replier Replier
}

// New creates the chat handler.
func New(replier Replier) *Handler {
	return &Handler{replier: replier}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chat.Request
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}
	if utf8.RuneCountInString(payload.Message) > MaxMessageLength {
		utils.RespondError(w, http.StatusBadRequest, "message is too long")
		return
	}

	reply := h.replier.Reply(r.Context(), payload.Message, chat.OriginText)
	utils.RespondJSON(w, http.StatusOK, reply)
}

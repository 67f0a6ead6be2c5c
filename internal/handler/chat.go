package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/service"
)

// ChatHandler serves the basement chat log.
type ChatHandler struct {
	chat   *service.ChatService
	logger *slog.Logger
}

func NewChatHandler(chat *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type chatRequest struct {
	Message string `json:"message"`
}

// HandleHistory returns recent messages, oldest first.
//
// HTTP: GET /api/basement/chat[?since=<unix ms>]
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			writeError(w, apperror.ValidationFailed("since", "since must be a Unix timestamp in milliseconds"))
			return
		}
		since = v
	}

	msgs, err := h.chat.History(r.Context(), since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HandlePost appends a message after the moderation gate admits it.
//
// HTTP: POST /api/basement/chat
// REQUEST BODY: {"message": "hello"}
func (h *ChatHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.chat.Post(r.Context(), auth.IdentityFromContext(r.Context()), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// HandleDelete removes one message. Admin only.
//
// HTTP: DELETE /api/basement/chat/{id} or DELETE /api/basement/chat?id=
func (h *ChatHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := idParam(r, chi.URLParam(r, "id"))
	if err := h.chat.Delete(r.Context(), auth.IdentityFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w)
}

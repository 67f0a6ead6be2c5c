package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/service"
)

// PresenceHandler serves the "who's online" list at /api/basement/users.
type PresenceHandler struct {
	presence *service.PresenceService
	logger   *slog.Logger
}

func NewPresenceHandler(presence *service.PresenceService, logger *slog.Logger) *PresenceHandler {
	return &PresenceHandler{presence: presence, logger: logger}
}

type heartbeatRequest struct {
	Name   string `json:"name"   validate:"required"`
	Status string `json:"status" validate:"omitempty,max=24"`
}

// HandleList returns visitors seen within the presence window.
//
// HTTP: GET /api/basement/users
func (h *PresenceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	recs, err := h.presence.Active(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleHeartbeat claims a display name for the caller's sid and marks it online.
//
// HTTP: POST /api/basement/users
// REQUEST BODY: {"name": "neo", "status": "online"}
// RESPONSE: {"success": true, "sid": "sid_...", "user": {...}}
func (h *PresenceHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	id := auth.IdentityFromContext(r.Context())
	rec, err := h.presence.Heartbeat(r.Context(), id.AnonymousID, req.Name, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"sid":     id.AnonymousID,
		"user":    rec,
	})
}

// HandleLeave drops the caller from the list without waiting for the window.
//
// HTTP: DELETE /api/basement/users
func (h *PresenceHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if err := h.presence.Leave(r.Context(), id.AnonymousID); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w)
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/service"
)

// ModerationHandler serves /api/basement/moderation?action=.
//
//	GET     settings (public), banned, muted
//	POST    ban, mute, kick, clear, settings, pin, unpin
//	DELETE  unban, unmute
//
// Every POST and DELETE action is admin only; the admin check runs before
// the body is even read, so a visitor probing actions always sees 403.
type ModerationHandler struct {
	mod    *service.ModerationService
	logger *slog.Logger
}

func NewModerationHandler(mod *service.ModerationService, logger *slog.Logger) *ModerationHandler {
	return &ModerationHandler{mod: mod, logger: logger}
}

var moderationMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete}

type sidRequest struct {
	SID string `json:"sid" validate:"required"`
}

type banRequest struct {
	SID    string `json:"sid"    validate:"required"`
	Name   string `json:"name"   validate:"omitempty,max=24"`
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

type muteRequest struct {
	SID      string `json:"sid"      validate:"required"`
	Name     string `json:"name"     validate:"omitempty,max=24"`
	Reason   string `json:"reason"   validate:"omitempty,max=200"`
	Duration int    `json:"duration" validate:"gte=0"`
}

type pinRequest struct {
	MessageID string `json:"messageId" validate:"required"`
}

type unpinRequest struct {
	MessageID string `json:"messageId"`
}

func (h *ModerationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	var (
		data any
		err  error
	)
	switch action := r.URL.Query().Get("action"); action {
	case "settings":
		data, err = h.mod.Settings(r.Context())
	case "banned":
		data, err = h.mod.Banned(r.Context(), id)
	case "muted":
		data, err = h.mod.Muted(r.Context(), id)
	default:
		writeMethodNotAllowed(w, "Method Not Allowed", moderationMethods...)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *ModerationHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	if err := id.RequireAdmin(); err != nil {
		writeError(w, err)
		return
	}

	switch r.URL.Query().Get("action") {
	case "ban":
		var req banRequest
		if err := bind(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		ban, err := h.mod.Ban(ctx, id, service.BanRequest{SID: req.SID, Name: req.Name, Reason: req.Reason})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ban)

	case "mute":
		var req muteRequest
		if err := bind(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		mute, err := h.mod.Mute(ctx, id, service.MuteRequest{
			SID: req.SID, Name: req.Name, Reason: req.Reason, Duration: req.Duration,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, mute)

	case "kick":
		var req sidRequest
		if err := bind(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if err := h.mod.Kick(ctx, id, req.SID); err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w)

	case "clear":
		res, err := h.mod.Clear(ctx, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"strategy": res.Strategy,
			"removed":  res.Removed,
		})

	case "settings":
		var patch model.ChatSettingsPatch
		if err := bind(w, r, &patch); err != nil {
			writeError(w, err)
			return
		}
		settings, err := h.mod.UpdateSettings(ctx, id, patch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)

	case "pin":
		var req pinRequest
		if err := bind(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if err := h.mod.Pin(ctx, id, req.MessageID); err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w)

	case "unpin":
		var req unpinRequest
		if err := bind(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if err := h.mod.Unpin(ctx, id, req.MessageID); err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w)

	default:
		writeMethodNotAllowed(w, "Method Not Allowed", moderationMethods...)
	}
}

// HandleDelete lifts a ban or a mute. The sid may come in the body or as ?sid=.
func (h *ModerationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.IdentityFromContext(ctx)
	if err := id.RequireAdmin(); err != nil {
		writeError(w, err)
		return
	}

	action := r.URL.Query().Get("action")
	if action != "unban" && action != "unmute" {
		writeMethodNotAllowed(w, "Method Not Allowed", moderationMethods...)
		return
	}

	req := sidRequest{SID: r.URL.Query().Get("sid")}
	if req.SID == "" {
		if err := bind(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	var err error
	if action == "unban" {
		err = h.mod.Unban(ctx, id, req.SID)
	} else {
		err = h.mod.Unmute(ctx, id, req.SID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w)
}

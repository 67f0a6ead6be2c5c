package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/service"
)

// SiteHandler serves the two singletons: /api/stats and /api/admin/settings.
type SiteHandler struct {
	site   *service.SiteService
	logger *slog.Logger
}

func NewSiteHandler(site *service.SiteService, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{site: site, logger: logger}
}

// HTTP: GET /api/stats
func (h *SiteHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.site.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleRecordVisit counts a visit. A body may override the count or the
// first-visit time, e.g. when migrating an old counter.
//
// HTTP: POST /api/stats
// REQUEST BODY (optional): {"visitorCount": 1234, "firstVisit": 1704067200000}
func (h *SiteHandler) HandleRecordVisit(w http.ResponseWriter, r *http.Request) {
	var req service.StatsUpdate
	if err := bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	stats, err := h.site.RecordVisit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HTTP: GET /api/admin/settings
func (h *SiteHandler) HandleAdminSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.site.AdminSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HTTP: POST /api/admin/settings (admin only)
func (h *SiteHandler) HandleSaveAdminSettings(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if err := id.RequireAdmin(); err != nil {
		writeError(w, err)
		return
	}

	var req model.AdminSettings
	if err := bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	saved, err := h.site.SaveAdminSettings(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": saved})
}

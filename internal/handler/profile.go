package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/sakif/conduit/internal/auth"
	"github.com/sakif/conduit/internal/service"
)

type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// HandleGet: GET /api/profiles/{username} (OptionalAuth)
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	profile, err := h.profiles.GetProfile(r.Context(), chi.URLParam(r, "username"), viewerID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, render.M{"profile": profile})
}

// HandleFollow: POST /api/profiles/{username}/follow (RequireAuth)
func (h *ProfileHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	profile, err := h.profiles.Follow(r.Context(), viewerID, chi.URLParam(r, "username"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, render.M{"profile": profile})
}

// HandleUnfollow: DELETE /api/profiles/{username}/follow (RequireAuth)
func (h *ProfileHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	profile, err := h.profiles.Unfollow(r.Context(), viewerID, chi.URLParam(r, "username"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, render.M{"profile": profile})
}

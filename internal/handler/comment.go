package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/sakif/conduit/internal/auth"
	"github.com/sakif/conduit/internal/service"
)

// CommentHandler serves /api/articles/{slug}/comments.
type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// HandleList: GET /api/articles/{slug}/comments (OptionalAuth)
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	comments, err := h.comments.ListComments(r.Context(), chi.URLParam(r, "slug"), viewerID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, render.M{"comments": comments})
}

// HandleCreate adds a comment.
//
// HTTP: POST /api/articles/{slug}/comments (RequireAuth)
// BODY: {"comment": {"body": "Thank you so much!"}}
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	var req createCommentRequest
	if err := bind(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	comment, err := h.comments.AddComment(r.Context(), viewerID, chi.URLParam(r, "slug"), req.Comment.Body)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, render.M{"comment": comment})
}

// HandleDelete: DELETE /api/articles/{slug}/comments/{id} (RequireAuth, author only)
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	err := h.comments.DeleteComment(r.Context(), viewerID, chi.URLParam(r, "slug"), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeSuccess(w)
}

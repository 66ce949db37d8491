package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/sakif/conduit/internal/auth"
	"github.com/sakif/conduit/internal/service"
)

// ArticleHandler serves /api/articles, the feed, favorites and /api/tags.
type ArticleHandler struct {
	articles *service.ArticleService
	logger   *slog.Logger
}

func NewArticleHandler(articles *service.ArticleService, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, logger: logger}
}

// HandleList returns a filtered page of articles.
//
// HTTP: GET /api/articles?tag=go&author=jake&favorited=anna&limit=20&offset=0
// RESPONSE: {"articles": [...], "articlesCount": 42}
func (h *ArticleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	viewerID, _ := auth.UserIDFromContext(r.Context())

	page, err := service.ParsePage(query.Get("limit"), query.Get("offset"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	list, err := h.articles.ListArticles(r.Context(), service.ArticleQuery{
		Tag:       query.Get("tag"),
		Author:    query.Get("author"),
		Favorited: query.Get("favorited"),
	}, page, viewerID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// HandleFeed returns articles by followed authors.
//
// HTTP: GET /api/articles/feed?limit=20&offset=0 (RequireAuth)
func (h *ArticleHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	viewerID, _ := auth.UserIDFromContext(r.Context())

	page, err := service.ParsePage(query.Get("limit"), query.Get("offset"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	list, err := h.articles.Feed(r.Context(), viewerID, page)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// HandleGet: GET /api/articles/{slug} (OptionalAuth)
func (h *ArticleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	article, err := h.articles.GetBySlug(r.Context(), chi.URLParam(r, "slug"), viewerID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, render.M{"article": article})
}

// HandleCreate publishes an article.
//
// HTTP: POST /api/articles (RequireAuth)
// BODY: {"article": {"title": "...", "description": "...", "body": "...", "tagList": ["go"]}}
func (h *ArticleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	var req createArticleRequest
	if err := bind(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	article, err := h.articles.Create(r.Context(), viewerID, service.ArticleInput{
		Title:       req.Article.Title,
		Description: req.Article.Description,
		Body:        req.Article.Body,
		TagList:     req.Article.TagList,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, render.M{"article": article})
}

// HandleUpdate: PUT /api/articles/{slug} (RequireAuth, author only)
func (h *ArticleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	var req updateArticleRequest
	if err := bind(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	article, err := h.articles.Update(r.Context(), chi.URLParam(r, "slug"), viewerID, service.ArticlePatch{
		Title:       req.Article.Title,
		Description: req.Article.Description,
		Body:        req.Article.Body,
		TagList:     req.Article.TagList,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, render.M{"article": article})
}

// HandleDelete: DELETE /api/articles/{slug} (RequireAuth, author only)
func (h *ArticleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	if err := h.articles.Delete(r.Context(), chi.URLParam(r, "slug"), viewerID); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeSuccess(w)
}

// HandleFavorite: POST /api/articles/{slug}/favorite (RequireAuth)
func (h *ArticleHandler) HandleFavorite(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	article, err := h.articles.Favorite(r.Context(), viewerID, chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, render.M{"article": article})
}

// HandleUnfavorite: DELETE /api/articles/{slug}/favorite (RequireAuth)
func (h *ArticleHandler) HandleUnfavorite(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	article, err := h.articles.Unfavorite(r.Context(), viewerID, chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, render.M{"article": article})
}

// HandleTags: GET /api/tags
func (h *ArticleHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.articles.Tags(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, render.M{"tags": tags})
}

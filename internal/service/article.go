package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/conduit/internal/apperror"
	"github.com/sakif/conduit/internal/model"
	"github.com/sakif/conduit/internal/repository"
	"github.com/sakif/conduit/internal/view"
)

// maxSlugAttempts is how many fresh slugs Create/Update try before giving up
// with a conflict. Each attempt has a 1 in 36^6 chance of colliding with a
// given existing slug for the same title.
const maxSlugAttempts = 5

// SlugMaker derives a URL key from a title. *slug.Generator implements it.
type SlugMaker interface {
	Make(title string) string
}

// ArticleQuery holds the optional filters of GET /api/articles. Author and
// Favorited are usernames.
type ArticleQuery struct {
	Tag       string
	Author    string
	Favorited string
}

// ArticleInput is the payload of POST /api/articles.
type ArticleInput struct {
	Title       string
	Description string
	Body        string
	TagList     []string
}

// ArticlePatch is the payload of PUT /api/articles/{slug}. Nil fields are
// left unchanged.
type ArticlePatch struct {
	Title       *string
	Description *string
	Body        *string
	TagList     *[]string
}

// ArticleService implements the article aggregate: listing and feed, CRUD
// by slug, favorites and tags.
type ArticleService struct {
	articles repository.ArticleRepository
	users    repository.UserRepository
	slugs    SlugMaker
	logger   *slog.Logger
}

func NewArticleService(
	articles repository.ArticleRepository,
	users repository.UserRepository,
	slugs SlugMaker,
	logger *slog.Logger,
) *ArticleService {
	return &ArticleService{
		articles: articles,
		users:    users,
		slugs:    slugs,
		logger:   logger,
	}
}

// ListArticles returns one page of articles matching query, newest first,
// with the total count of matches.
//
// Author and Favorited name users. A name that matches nobody cannot match any
// article either, so the result is simply empty.
func (s *ArticleService) ListArticles(ctx context.Context, query ArticleQuery, page repository.ListOptions, viewerID string) (view.ArticleList, error) {
	filter := repository.ArticleFilter{Tag: strings.TrimSpace(query.Tag)}

	if name := strings.TrimSpace(query.Author); name != "" {
		author, err := s.users.GetUserByUsername(ctx, name)
		if errors.Is(err, apperror.ErrNotFound) {
			return emptyList(), nil
		}
		if err != nil {
			return view.ArticleList{}, fmt.Errorf("service/article: resolving author %s: %w", name, err)
		}
		filter.AuthorID = author.ID
	}
	if name := strings.TrimSpace(query.Favorited); name != "" {
		fan, err := s.users.GetUserByUsername(ctx, name)
		if errors.Is(err, apperror.ErrNotFound) {
			return emptyList(), nil
		}
		if err != nil {
			return view.ArticleList{}, fmt.Errorf("service/article: resolving favorited %s: %w", name, err)
		}
		filter.FavoritedBy = fan.ID
	}

	viewer, err := optionalViewer(ctx, s.users, viewerID)
	if err != nil {
		return view.ArticleList{}, fmt.Errorf("service/article: %w", err)
	}

	return s.list(ctx, filter, page, viewer)
}

// Feed lists articles written by the users the viewer follows.
func (s *ArticleService) Feed(ctx context.Context, viewerID string, page repository.ListOptions) (view.ArticleList, error) {
	viewer, err := requireViewer(ctx, s.users, viewerID)
	if err != nil {
		return view.ArticleList{}, err
	}
	if len(viewer.Following) == 0 {
		return emptyList(), nil
	}
	return s.list(ctx, repository.ArticleFilter{FollowedBy: viewer.ID}, page, viewer)
}

// list fetches the page and the total count concurrently. They are
// independent reads; the count ignores pagination.
func (s *ArticleService) list(ctx context.Context, filter repository.ArticleFilter, page repository.ListOptions, viewer *model.User) (view.ArticleList, error) {
	page = normalizePage(page)

	var (
		articles []model.Article
		count    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		articles, err = s.articles.ListArticles(gctx, filter, page)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = s.articles.CountArticles(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to list articles", slog.String("error", err.Error()))
		return view.ArticleList{}, fmt.Errorf("service/article: listing: %w", err)
	}

	return view.ArticleList{
		Articles:      view.NewArticles(articles, viewer),
		ArticlesCount: count,
	}, nil
}

func emptyList() view.ArticleList {
	return view.ArticleList{Articles: []view.Article{}, ArticlesCount: 0}
}

// GetBySlug renders one article for the (optional) viewer.
func (s *ArticleService) GetBySlug(ctx context.Context, slug, viewerID string) (view.Article, error) {
	article, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return view.Article{}, err
	}
	viewer, err := optionalViewer(ctx, s.users, viewerID)
	if err != nil {
		return view.Article{}, fmt.Errorf("service/article: %w", err)
	}
	return view.NewArticle(article, viewer), nil
}

// Create publishes a new article by the viewer.
func (s *ArticleService) Create(ctx context.Context, authorID string, in ArticleInput) (view.Article, error) {
	author, err := requireViewer(ctx, s.users, authorID)
	if err != nil {
		return view.Article{}, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return view.Article{}, apperror.ValidationFailed("title", "title is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return view.Article{}, apperror.ValidationFailed("body", "body is required")
	}

	slug, err := s.uniqueSlug(ctx, title)
	if err != nil {
		return view.Article{}, err
	}

	article := &model.Article{
		Slug:        slug,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Body:        in.Body,
		TagList:     cleanTags(in.TagList),
		AuthorID:    author.ID,
		Author:      author,
	}
	if err := s.articles.CreateArticle(ctx, article); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return view.Article{}, err
		}
		s.logger.Error("failed to create article",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		return view.Article{}, fmt.Errorf("service/article: creating %s: %w", slug, err)
	}

	s.logger.Info("article created",
		slog.String("id", article.ID),
		slog.String("slug", article.Slug),
		slog.String("author", author.Username),
	)
	return view.NewArticle(article, author), nil
}

// Update applies the present fields of patch. Only the author may update, and
// a changed title gets a new slug.
func (s *ArticleService) Update(ctx context.Context, slug, viewerID string, patch ArticlePatch) (view.Article, error) {
	article, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return view.Article{}, err
	}
	if err := requireOwner(viewerID, article, "article"); err != nil {
		return view.Article{}, err
	}
	viewer, err := requireViewer(ctx, s.users, viewerID)
	if err != nil {
		return view.Article{}, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return view.Article{}, apperror.ValidationFailed("title", "title must not be empty")
		}
		if title != article.Title {
			newSlug, err := s.uniqueSlug(ctx, title)
			if err != nil {
				return view.Article{}, err
			}
			article.Title = title
			article.Slug = newSlug
		}
	}
	if patch.Description != nil {
		article.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Body != nil {
		if strings.TrimSpace(*patch.Body) == "" {
			return view.Article{}, apperror.ValidationFailed("body", "body must not be empty")
		}
		article.Body = *patch.Body
	}
	if patch.TagList != nil {
		article.TagList = cleanTags(*patch.TagList)
	}

	if err := s.articles.UpdateArticle(ctx, article); err != nil {
		if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrNotFound) {
			return view.Article{}, err
		}
		return view.Article{}, fmt.Errorf("service/article: updating %s: %w", article.ID, err)
	}

	s.logger.Info("article updated", slog.String("id", article.ID), slog.String("slug", article.Slug))
	return view.NewArticle(article, viewer), nil
}

// Delete removes the article together with its tags, comments and favorites.
func (s *ArticleService) Delete(ctx context.Context, slug, viewerID string) error {
	article, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := requireOwner(viewerID, article, "article"); err != nil {
		return err
	}

	if err := s.articles.DeleteArticle(ctx, article.ID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to delete article",
			slog.String("id", article.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/article: deleting %s: %w", article.ID, err)
	}

	s.logger.Info("article deleted",
		slog.String("id", article.ID),
		slog.String("slug", article.Slug),
		slog.Int("comments", len(article.CommentIDs)),
	)
	return nil
}

// Favorite adds the article to the viewer's favorites. Favoriting twice has no
// further effect.
func (s *ArticleService) Favorite(ctx context.Context, viewerID, slug string) (view.Article, error) {
	return s.setFavorite(ctx, viewerID, slug, true)
}

// Unfavorite removes the article from the viewer's favorites.
func (s *ArticleService) Unfavorite(ctx context.Context, viewerID, slug string) (view.Article, error) {
	return s.setFavorite(ctx, viewerID, slug, false)
}

func (s *ArticleService) setFavorite(ctx context.Context, viewerID, slug string, favorite bool) (view.Article, error) {
	article, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return view.Article{}, err
	}
	viewer, err := requireViewer(ctx, s.users, viewerID)
	if err != nil {
		return view.Article{}, err
	}

	count, err := s.articles.SetFavorite(ctx, viewer.ID, article.ID, favorite)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return view.Article{}, err
		}
		return view.Article{}, fmt.Errorf("service/article: setting favorite on %s: %w", article.ID, err)
	}
	article.FavoritesCount = count

	// Render from the stored favorites set, not a locally patched copy.
	viewer, err = requireViewer(ctx, s.users, viewer.ID)
	if err != nil {
		return view.Article{}, err
	}
	return view.NewArticle(article, viewer), nil
}

// Tags lists every tag in use.
func (s *ArticleService) Tags(ctx context.Context) ([]string, error) {
	tags, err := s.articles.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/article: listing tags: %w", err)
	}
	return tags, nil
}

func (s *ArticleService) uniqueSlug(ctx context.Context, title string) (string, error) {
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		candidate := s.slugs.Make(title)
		taken, err := s.articles.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("service/article: checking slug %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		s.logger.Warn("slug collision", slog.String("slug", candidate), slog.Int("attempt", attempt+1))
	}
	return "", apperror.Conflict("article slug", title)
}

// cleanTags trims tags, drops empty ones and keeps the first occurrence of
// duplicates.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

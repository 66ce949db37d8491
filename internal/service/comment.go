package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/conduit/internal/apperror"
	"github.com/sakif/conduit/internal/model"
	"github.com/sakif/conduit/internal/repository"
	"github.com/sakif/conduit/internal/view"
)

// CommentService manages the comments hanging off an article.
type CommentService struct {
	comments repository.CommentRepository
	articles repository.ArticleRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

func NewCommentService(
	comments repository.CommentRepository,
	articles repository.ArticleRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{
		comments: comments,
		articles: articles,
		users:    users,
		logger:   logger,
	}
}

// AddComment appends a comment by the viewer to the article's list.
//
// A missing article is reported as a validation error on the slug, not as
// not-found: the request names a target that does not exist.
func (s *CommentService) AddComment(ctx context.Context, viewerID, slug, body string) (view.Comment, error) {
	viewer, err := requireViewer(ctx, s.users, viewerID)
	if err != nil {
		return view.Comment{}, err
	}
	if strings.TrimSpace(body) == "" {
		return view.Comment{}, apperror.ValidationFailed("body", "comment body is required")
	}

	article, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return view.Comment{}, apperror.ValidationFailed("slug", fmt.Sprintf("article %s does not exist", slug))
		}
		return view.Comment{}, fmt.Errorf("service/comment: loading article %s: %w", slug, err)
	}

	comment := &model.Comment{
		Body:      body,
		AuthorID:  viewer.ID,
		Author:    viewer,
		ArticleID: article.ID,
	}
	if err := s.comments.AddComment(ctx, comment); err != nil {
		s.logger.Error("failed to add comment",
			slog.String("article", article.ID),
			slog.String("error", err.Error()),
		)
		return view.Comment{}, fmt.Errorf("service/comment: adding comment to %s: %w", article.ID, err)
	}

	s.logger.Info("comment added",
		slog.String("id", comment.ID),
		slog.String("article", article.Slug),
		slog.String("author", viewer.Username),
	)
	return view.NewComment(comment, viewer), nil
}

// ListComments returns the article's comments in the order they were added.
func (s *CommentService) ListComments(ctx context.Context, slug, viewerID string) ([]view.Comment, error) {
	article, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	viewer, err := optionalViewer(ctx, s.users, viewerID)
	if err != nil {
		return nil, fmt.Errorf("service/comment: %w", err)
	}

	comments, err := s.comments.ListComments(ctx, article.ID)
	if err != nil {
		return nil, fmt.Errorf("service/comment: listing comments of %s: %w", article.ID, err)
	}
	return view.NewComments(comments, viewer), nil
}

// DeleteComment removes a comment. The comment must be in the article's list
// and only its author may delete it.
func (s *CommentService) DeleteComment(ctx context.Context, viewerID, slug, commentID string) error {
	article, err := s.articles.GetArticleBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if !article.HasComment(commentID) {
		return apperror.NotFound("comment", commentID)
	}

	comment, err := s.comments.GetCommentByID(ctx, commentID)
	if err != nil {
		return err
	}
	if err := requireOwner(viewerID, comment, "comment"); err != nil {
		return err
	}

	if err := s.comments.RemoveComment(ctx, article.ID, comment.ID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to delete comment",
			slog.String("id", comment.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/comment: deleting %s: %w", comment.ID, err)
	}

	s.logger.Info("comment deleted", slog.String("id", comment.ID), slog.String("article", article.Slug))
	return nil
}

// Package repository declares the persistence contracts the services depend on.
//
// Services only see these interfaces; internal/repository/sqlite is the one
// implementation. Operations that touch more than one record (comment
// create/delete, favorite + recount, article delete) are single methods here so
// that the implementation can run them inside one transaction.
package repository

import (
	"context"

	"github.com/sakif/conduit/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// ArticleFilter narrows article queries. Zero-valued fields do not filter.
type ArticleFilter struct {
	Tag         string // tagList contains Tag
	AuthorID    string // written by this user
	FavoritedBy string // favorites set of this user contains the article
	FollowedBy  string // author is in this user's following set (the feed)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	Upsert(ctx context.Context, user *model.User) error
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
}

type ArticleRepository interface {
	CreateArticle(ctx context.Context, article *model.Article) error
	GetArticleBySlug(ctx context.Context, slug string) (*model.Article, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListArticles(ctx context.Context, filter ArticleFilter, opts ListOptions) ([]model.Article, error)
	CountArticles(ctx context.Context, filter ArticleFilter) (int, error)
	UpdateArticle(ctx context.Context, article *model.Article) error
	DeleteArticle(ctx context.Context, id string) error
	// SetFavorite adds (favorite=true) or removes the article from the user's
	// favorites set and returns the recomputed favorites count.
	SetFavorite(ctx context.Context, userID, articleID string, favorite bool) (int, error)
	ListTags(ctx context.Context) ([]string, error)
}

type CommentRepository interface {
	// AddComment stores the comment and appends its ID to the article's list.
	AddComment(ctx context.Context, comment *model.Comment) error
	GetCommentByID(ctx context.Context, id string) (*model.Comment, error)
	// ListComments returns the article's comments in list order, authors populated.
	ListComments(ctx context.Context, articleID string) ([]model.Comment, error)
	// RemoveComment detaches the comment from the article's list, then deletes it.
	RemoveComment(ctx context.Context, articleID, commentID string) error
}

// Package view turns domain models into the JSON shapes clients see.
//
// Every function takes an optional viewer (nil = anonymous) and computes the
// viewer-relative booleans ("following", "favorited") from the viewer's sets.
// They are pure: inputs are never modified, and the returned values share no
// slices with them.
package view

import (
	"slices"
	"time"

	"github.com/sakif/conduit/internal/model"
)

type Profile struct {
	Username  string `json:"username"`
	Bio       string `json:"bio"`
	Image     string `json:"image"`
	Following bool   `json:"following"`
}

type Article struct {
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Body           string    `json:"body"`
	TagList        []string  `json:"tagList"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Favorited      bool      `json:"favorited"`
	FavoritesCount int       `json:"favoritesCount"`
	Author         Profile   `json:"author"`
}

// ArticleList is a page of articles plus the total matching count, which does
// not depend on the page.
type ArticleList struct {
	Articles      []Article `json:"articles"`
	ArticlesCount int       `json:"articlesCount"`
}

type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    Profile   `json:"author"`
}

// AuthUser is the signed-in user's own record, with a token to use on the
// following requests.
type AuthUser struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Username string `json:"username"`
	Bio      string `json:"bio"`
	Image    string `json:"image"`
}

// NewProfile renders user's public fields. A nil user (an author that could
// not be populated) renders as an empty profile.
func NewProfile(user, viewer *model.User) Profile {
	if user == nil {
		return Profile{}
	}
	return Profile{
		Username:  user.Username,
		Bio:       user.Bio,
		Image:     user.Image,
		Following: viewer.IsFollowing(user.ID),
	}
}

func NewArticle(article *model.Article, viewer *model.User) Article {
	tags := slices.Clone(article.TagList)
	if tags == nil {
		tags = []string{}
	}
	return Article{
		Slug:           article.Slug,
		Title:          article.Title,
		Description:    article.Description,
		Body:           article.Body,
		TagList:        tags,
		CreatedAt:      article.CreatedAt,
		UpdatedAt:      article.UpdatedAt,
		Favorited:      viewer.HasFavorited(article.ID),
		FavoritesCount: article.FavoritesCount,
		Author:         NewProfile(article.Author, viewer),
	}
}

// NewArticles renders in order. The result is never nil so an empty page
// encodes as [] and not null.
func NewArticles(articles []model.Article, viewer *model.User) []Article {
	out := make([]Article, 0, len(articles))
	for i := range articles {
		out = append(out, NewArticle(&articles[i], viewer))
	}
	return out
}

func NewComment(comment *model.Comment, viewer *model.User) Comment {
	return Comment{
		ID:        comment.ID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
		Author:    NewProfile(comment.Author, viewer),
	}
}

func NewComments(comments []model.Comment, viewer *model.User) []Comment {
	out := make([]Comment, 0, len(comments))
	for i := range comments {
		out = append(out, NewComment(&comments[i], viewer))
	}
	return out
}

func NewAuthUser(user *model.User, token string) AuthUser {
	return AuthUser{
		Email:    user.Email,
		Token:    token,
		Username: user.Username,
		Bio:      user.Bio,
		Image:    user.Image,
	}
}

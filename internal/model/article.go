package model

import (
	"slices"
	"time"
)

// Article is the aggregate root for a blog post.
//
// OWNERSHIP:
//   - AuthorID references a User; the article does not own its author.
//     Author is the "populated" reference, filled in by repository reads and
//     nil on a freshly built value.
//   - CommentIDs is the article's ordered comment list. Comments live in their
//     own table and are looked up by ID; the article only holds references.
//   - FavoritesCount is denormalised. It is always recomputed from the
//     favorites table, never incremented, so it cannot drift.
type Article struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Body           string    `json:"body"`
	TagList        []string  `json:"tagList"`
	AuthorID       string    `json:"-"`
	Author         *User     `json:"-"`
	FavoritesCount int       `json:"favoritesCount"`
	CommentIDs     []string  `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// IsAuthoredBy reports whether userID owns the article.
func (a *Article) IsAuthoredBy(userID string) bool {
	return userID != "" && a.AuthorID == userID
}

// HasComment reports whether commentID is currently in the article's comment list.
func (a *Article) HasComment(commentID string) bool {
	return slices.Contains(a.CommentIDs, commentID)
}

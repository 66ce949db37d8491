package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/conduit/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" gives every test a fresh, private database that disappears when
// the connection closes. No fixtures on disk, no cleanup between tests.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestArticle(t *testing.T, db *DB, author *model.User, slug string, tags ...string) *model.Article {
	t.Helper()
	article := &model.Article{
		Slug:        slug,
		Title:       "Title of " + slug,
		Description: "about " + slug,
		Body:        "body of " + slug,
		TagList:     tags,
		AuthorID:    author.ID,
	}
	if err := db.CreateArticle(context.Background(), article); err != nil {
		t.Fatalf("failed to create test article: %v", err)
	}
	return article
}

func createTestComment(t *testing.T, db *DB, article *model.Article, author *model.User, body string) *model.Comment {
	t.Helper()
	comment := &model.Comment{Body: body, AuthorID: author.ID, ArticleID: article.ID}
	if err := db.AddComment(context.Background(), comment); err != nil {
		t.Fatalf("failed to add test comment: %v", err)
	}
	return comment
}

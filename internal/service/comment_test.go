package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/conduit/internal/apperror"
	"github.com/sakif/conduit/internal/model"
)

func TestAddComment(t *testing.T) {
	f := newFixture(t, nil)
	jake := f.user(t, "jake")
	anna := f.user(t, "anna")
	ctx := context.Background()
	s := f.article(t, jake, "Discuss")

	got, err := f.comments.AddComment(ctx, anna.ID, s, "Thank you so much!")
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Thank you so much!", got.Body)
	assert.Equal(t, "anna", got.Author.Username)
}

func TestAddComment_Errors(t *testing.T) {
	f := newFixture(t, nil)
	jake := f.user(t, "jake")
	ctx := context.Background()
	s := f.article(t, jake, "Discuss")

	tests := []struct {
		name    string
		viewer  string
		slug    string
		body    string
		wantErr error
	}{
		{"anonymous", "", s, "hi", apperror.ErrUnauthorized},
		{"empty body", jake.ID, s, "", apperror.ErrValidation},
		{"blank body", jake.ID, s, "   ", apperror.ErrValidation},
		{"unknown article", jake.ID, "missing", "hi", apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.comments.AddComment(ctx, tt.viewer, tt.slug, tt.body)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestListComments_CreationOrder(t *testing.T) {
	f := newFixture(t, nil)
	jake := f.user(t, "jake")
	anna := f.user(t, "anna")
	ctx := context.Background()
	s := f.article(t, jake, "Discuss")

	for _, body := range []string{"first", "second", "third"} {
		_, err := f.comments.AddComment(ctx, anna.ID, s, body)
		require.NoError(t, err)
	}

	got, err := f.comments.ListComments(ctx, s, "")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Body)
	assert.Equal(t, "second", got[1].Body)
	assert.Equal(t, "third", got[2].Body)

	_, err = f.comments.ListComments(ctx, "missing", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// User B comments on user A's article. A may not delete it, B may.
func TestDeleteComment_OnlyAuthor(t *testing.T) {
	f := newFixture(t, nil)
	userA := f.user(t, "alice")
	userB := f.user(t, "bob")
	ctx := context.Background()
	s := f.article(t, userA, "Alice writes")

	comment, err := f.comments.AddComment(ctx, userB.ID, s, "bob was here")
	require.NoError(t, err)

	err = f.comments.DeleteComment(ctx, userA.ID, s, comment.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	listed, err := f.comments.ListComments(ctx, s, "")
	require.NoError(t, err)
	assert.Len(t, listed, 1, "comment must survive a forbidden delete")

	require.NoError(t, f.comments.DeleteComment(ctx, userB.ID, s, comment.ID))

	listed, err = f.comments.ListComments(ctx, s, "")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestDeleteComment_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	jake := f.user(t, "jake")
	ctx := context.Background()
	here := f.article(t, jake, "Here")
	there := f.article(t, jake, "There")
	comment, err := f.comments.AddComment(ctx, jake.ID, here, "on here")
	require.NoError(t, err)

	assert.ErrorIs(t, f.comments.DeleteComment(ctx, jake.ID, "missing", comment.ID), apperror.ErrNotFound)
	assert.ErrorIs(t, f.comments.DeleteComment(ctx, jake.ID, here, "nope"), apperror.ErrNotFound)
	assert.ErrorIs(t, f.comments.DeleteComment(ctx, jake.ID, there, comment.ID), apperror.ErrNotFound,
		"a comment is only reachable through its own article")
}

func TestRequireOwner(t *testing.T) {
	article := &model.Article{AuthorID: "u1"}
	comment := &model.Comment{AuthorID: "u2"}
	orphan := &model.Comment{}

	tests := []struct {
		name     string
		actorID  string
		resource authored
		wantErr  error
	}{
		{"article author", "u1", article, nil},
		{"someone else's article", "u2", article, apperror.ErrForbidden},
		{"comment author", "u2", comment, nil},
		{"article author on a comment", "u1", comment, apperror.ErrForbidden},
		{"anonymous", "", article, apperror.ErrForbidden},
		{"anonymous on authorless resource", "", orphan, apperror.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := requireOwner(tt.actorID, tt.resource, "thing")
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

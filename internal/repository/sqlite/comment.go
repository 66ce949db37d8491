package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/conduit/internal/apperror"
	"github.com/sakif/conduit/internal/model"
	"github.com/sakif/conduit/internal/repository"
)

var _ repository.CommentRepository = (*DB)(nil)

const commentSelect = `
	SELECT c.id, c.body, c.author_id, c.article_id, c.created_at, c.updated_at,
	       u.id, u.github_id, u.username, u.email, u.bio, u.image,
	       u.password_hash, u.created_at, u.updated_at
	FROM comments c
	JOIN users u ON u.id = c.author_id`

func scanComment(s scanner) (model.Comment, error) {
	var (
		c        model.Comment
		author   model.User
		githubID sql.NullInt64
	)
	err := s.Scan(
		&c.ID, &c.Body, &c.AuthorID, &c.ArticleID, &c.CreatedAt, &c.UpdatedAt,
		&author.ID, &githubID, &author.Username, &author.Email, &author.Bio, &author.Image,
		&author.PasswordHash, &author.CreatedAt, &author.UpdatedAt,
	)
	if err != nil {
		return model.Comment{}, err
	}
	author.GitHubID = githubID.Int64
	c.Author = &author
	return c, nil
}

// AddComment inserts the comment and appends its ID to the article's comment
// list. Both writes share a transaction: either the comment exists and is
// listed, or neither happened.
func (db *DB) AddComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	ts := now()
	comment.CreatedAt = ts
	comment.UpdatedAt = ts

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO comments (id, body, author_id, article_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			comment.ID,
			comment.Body,
			comment.AuthorID,
			comment.ArticleID,
			comment.CreatedAt,
			comment.UpdatedAt,
		); err != nil {
			return fmt.Errorf("sqlite: creating comment on %s: %w", comment.ArticleID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO article_comments (article_id, comment_id) VALUES (?, ?)`,
			comment.ArticleID, comment.ID,
		); err != nil {
			return fmt.Errorf("sqlite: appending comment %s to %s: %w", comment.ID, comment.ArticleID, err)
		}
		return nil
	})
}

// GetCommentByID loads a comment with its author.
func (db *DB) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(db.conn.QueryRowContext(ctx, commentSelect+` WHERE c.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}
	return &c, nil
}

// ListComments follows the article's comment list, so the order is the order
// the comments were appended in.
func (db *DB) ListComments(ctx context.Context, articleID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		commentSelect+`
		 JOIN article_comments ac ON ac.comment_id = c.id
		 WHERE ac.article_id = ?
		 ORDER BY ac.seq`,
		articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of %s: %w", articleID, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}

// RemoveComment detaches the comment from the article's list, then deletes
// the comment record, in that order and in one transaction.
func (db *DB) RemoveComment(ctx context.Context, articleID, commentID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM article_comments WHERE article_id = ? AND comment_id = ?`,
			articleID, commentID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: detaching comment %s from %s: %w", commentID, articleID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("comment", commentID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, commentID); err != nil {
			return fmt.Errorf("sqlite: deleting comment %s: %w", commentID, err)
		}
		return nil
	})
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/conduit/internal/apperror"
	"github.com/sakif/conduit/internal/model"
	"github.com/sakif/conduit/internal/repository"
)

var _ repository.ArticleRepository = (*DB)(nil)

// articleSelect reads an article together with its author, which is how we
// "populate" the author reference in one round trip.
const articleSelect = `
	SELECT a.id, a.slug, a.title, a.description, a.body, a.author_id,
	       a.favorites_count, a.created_at, a.updated_at,
	       u.id, u.github_id, u.username, u.email, u.bio, u.image,
	       u.password_hash, u.created_at, u.updated_at
	FROM articles a
	JOIN users u ON u.id = a.author_id`

func scanArticle(s scanner) (model.Article, error) {
	var (
		a        model.Article
		author   model.User
		githubID sql.NullInt64
	)
	err := s.Scan(
		&a.ID, &a.Slug, &a.Title, &a.Description, &a.Body, &a.AuthorID,
		&a.FavoritesCount, &a.CreatedAt, &a.UpdatedAt,
		&author.ID, &githubID, &author.Username, &author.Email, &author.Bio, &author.Image,
		&author.PasswordHash, &author.CreatedAt, &author.UpdatedAt,
	)
	if err != nil {
		return model.Article{}, err
	}
	author.GitHubID = githubID.Int64
	a.Author = &author
	a.TagList = []string{}
	a.CommentIDs = []string{}
	return a, nil
}

// articleWhere turns a filter into a WHERE clause over the "a" alias.
//
// The favorited filter matches on the favorites relation (articles the user
// favorited), not on the article ID.
func articleWhere(f repository.ArticleFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Tag != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM article_tags t WHERE t.article_id = a.id AND t.tag = ?)`)
		args = append(args, f.Tag)
	}
	if f.AuthorID != "" {
		conds = append(conds, `a.author_id = ?`)
		args = append(args, f.AuthorID)
	}
	if f.FavoritedBy != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM favorites f WHERE f.article_id = a.id AND f.user_id = ?)`)
		args = append(args, f.FavoritedBy)
	}
	if f.FollowedBy != "" {
		conds = append(conds, `a.author_id IN (SELECT followee_id FROM follows WHERE follower_id = ?)`)
		args = append(args, f.FollowedBy)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// CreateArticle inserts the article row and its tags in one transaction.
// A taken slug is reported as apperror.ErrConflict.
func (db *DB) CreateArticle(ctx context.Context, article *model.Article) error {
	article.ID = xid.New().String()
	ts := now()
	article.CreatedAt = ts
	article.UpdatedAt = ts
	article.FavoritesCount = 0
	if article.TagList == nil {
		article.TagList = []string{}
	}
	article.CommentIDs = []string{}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO articles (id, slug, title, description, body, author_id, favorites_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			article.ID,
			article.Slug,
			article.Title,
			article.Description,
			article.Body,
			article.AuthorID,
			article.CreatedAt,
			article.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("article slug", article.Slug)
			}
			return fmt.Errorf("sqlite: creating article %s: %w", article.Slug, err)
		}
		return insertTags(ctx, tx, article.ID, article.TagList)
	})
}

func insertTags(ctx context.Context, q querier, articleID string, tags []string) error {
	for i, tag := range tags {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO article_tags (article_id, position, tag) VALUES (?, ?, ?)`,
			articleID, i, tag,
		); err != nil {
			return fmt.Errorf("sqlite: tagging article %s with %q: %w", articleID, tag, err)
		}
	}
	return nil
}

// GetArticleBySlug loads the full aggregate: row, author, tags and comment list.
func (db *DB) GetArticleBySlug(ctx context.Context, slug string) (*model.Article, error) {
	a, err := scanArticle(db.conn.QueryRowContext(ctx, articleSelect+` WHERE a.slug = ?`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("article", slug)
		}
		return nil, fmt.Errorf("sqlite: getting article %s: %w", slug, err)
	}

	articles := []model.Article{a}
	if err := db.loadTags(ctx, articles); err != nil {
		return nil, err
	}
	a = articles[0]

	if a.CommentIDs, err = db.loadIDs(ctx,
		`SELECT comment_id FROM article_comments WHERE article_id = ? ORDER BY seq`, a.ID); err != nil {
		return nil, fmt.Errorf("sqlite: loading comment list of %s: %w", a.ID, err)
	}

	return &a, nil
}

// SlugExists reports whether an article already uses slug.
func (db *DB) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE slug = ?)`, slug,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking slug %s: %w", slug, err)
	}
	return exists, nil
}

// ListArticles returns one page of articles matching filter, newest first,
// with authors and tags populated. Comment lists are not loaded.
//
// Articles created in the same instant are ordered by insertion (rowid),
// newest first, so pages are stable.
func (db *DB) ListArticles(ctx context.Context, filter repository.ArticleFilter, opts repository.ListOptions) ([]model.Article, error) {
	where, args := articleWhere(filter)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := db.conn.QueryContext(ctx,
		articleSelect+where+`
		 ORDER BY a.created_at DESC, a.rowid DESC
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing articles: %w", err)
	}

	articles := make([]model.Article, 0, opts.Limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning article row: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating articles: %w", err)
	}
	// Close before loading tags: see QUERY DISCIPLINE in sqlite.go.
	rows.Close()

	if err := db.loadTags(ctx, articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// loadTags fills TagList for every article with a single IN query.
func (db *DB) loadTags(ctx context.Context, articles []model.Article) error {
	if len(articles) == 0 {
		return nil
	}

	index := make(map[string]int, len(articles))
	args := make([]any, 0, len(articles))
	for i := range articles {
		index[articles[i].ID] = i
		args = append(args, articles[i].ID)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT article_id, tag FROM article_tags
		 WHERE article_id IN (`+placeholders(len(args))+`)
		 ORDER BY article_id, position`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var articleID, tag string
		if err := rows.Scan(&articleID, &tag); err != nil {
			return fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		i := index[articleID]
		articles[i].TagList = append(articles[i].TagList, tag)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating tags: %w", err)
	}
	return nil
}

// CountArticles counts all articles matching filter, ignoring pagination.
func (db *DB) CountArticles(ctx context.Context, filter repository.ArticleFilter) (int, error) {
	where, args := articleWhere(filter)

	var count int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles a`+where, args...,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: counting articles: %w", err)
	}
	return count, nil
}

// UpdateArticle saves the editable fields and replaces the tag list.
// The favorites count and comment list are owned by their own operations
// and are not written here.
func (db *DB) UpdateArticle(ctx context.Context, article *model.Article) error {
	article.UpdatedAt = now()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE articles
			 SET slug = ?, title = ?, description = ?, body = ?, updated_at = ?
			 WHERE id = ?`,
			article.Slug,
			article.Title,
			article.Description,
			article.Body,
			article.UpdatedAt,
			article.ID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("article slug", article.Slug)
			}
			return fmt.Errorf("sqlite: updating article %s: %w", article.ID, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("article", article.ID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM article_tags WHERE article_id = ?`, article.ID,
		); err != nil {
			return fmt.Errorf("sqlite: clearing tags of %s: %w", article.ID, err)
		}
		return insertTags(ctx, tx, article.ID, article.TagList)
	})
}

// DeleteArticle removes the article and everything hanging off it: its
// comment list, the comments themselves, favorites rows and tags.
func (db *DB) DeleteArticle(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		// Children first. The comment list references comments, so it goes
		// before the comments.
		cleanup := []struct {
			what  string
			query string
		}{
			{"comment list", `DELETE FROM article_comments WHERE article_id = ?`},
			{"comments", `DELETE FROM comments WHERE article_id = ?`},
			{"favorites", `DELETE FROM favorites WHERE article_id = ?`},
			{"tags", `DELETE FROM article_tags WHERE article_id = ?`},
		}
		for _, c := range cleanup {
			if _, err := tx.ExecContext(ctx, c.query, id); err != nil {
				return fmt.Errorf("sqlite: deleting %s of article %s: %w", c.what, id, err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting article %s: %w", id, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("article", id)
		}
		return nil
	})
}

// SetFavorite updates the user's favorites set and recomputes the article's
// favorites count from that set, in one transaction.
//
// The count is always COUNT(*) over the favorites table, never +1/-1, so a
// repeated or failed call cannot make it drift.
func (db *DB) SetFavorite(ctx context.Context, userID, articleID string, favorite bool) (int, error) {
	var count int

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if favorite {
			_, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO favorites (user_id, article_id) VALUES (?, ?)`,
				userID, articleID)
		} else {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM favorites WHERE user_id = ? AND article_id = ?`,
				userID, articleID)
		}
		if err != nil {
			return fmt.Errorf("sqlite: setting favorite (%s, %s, %t): %w", userID, articleID, favorite, err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE articles
			 SET favorites_count = (SELECT COUNT(*) FROM favorites WHERE article_id = ?)
			 WHERE id = ?`,
			articleID, articleID)
		if err != nil {
			return fmt.Errorf("sqlite: recounting favorites of %s: %w", articleID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("article", articleID)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT favorites_count FROM articles WHERE id = ?`, articleID,
		).Scan(&count); err != nil {
			return fmt.Errorf("sqlite: reading favorites count of %s: %w", articleID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListTags returns every tag in use, alphabetically.
func (db *DB) ListTags(ctx context.Context) ([]string, error) {
	tags, err := db.loadIDs(ctx, `SELECT DISTINCT tag FROM article_tags ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags: %w", err)
	}
	return tags, nil
}

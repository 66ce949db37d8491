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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, github_id, username, email, bio, image, password_hash, created_at, updated_at`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner, u *model.User) error {
	var githubID sql.NullInt64
	if err := s.Scan(
		&u.ID,
		&githubID,
		&u.Username,
		&u.Email,
		&u.Bio,
		&u.Image,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return err
	}
	u.GitHubID = githubID.Int64
	return nil
}

// nullableGitHubID stores 0 as NULL so the UNIQUE index ignores password accounts.
func nullableGitHubID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// CreateUser inserts a new user. Username and email clashes are reported as
// apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	ts := now()
	user.CreatedAt = ts
	user.UpdatedAt = ts

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullableGitHubID(user.GitHubID),
		user.Username,
		user.Email,
		user.Bio,
		user.Image,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username+" / "+user.Email)
		}
		return fmt.Errorf("sqlite: creating user %s: %w", user.Username, err)
	}

	return nil
}

// GetUserByID retrieves a user with its following and favorites sets.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id", id)
}

// GetUserByUsername is the lookup behind profiles and the author/favorited filters.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, "username", username)
}

// GetUserByEmail is used by password login.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, "email", email)
}

// getUser loads one user by a unique column, then its two relation sets.
// column is always a constant chosen by this file, never user input.
func (db *DB) getUser(ctx context.Context, column string, value any) (*model.User, error) {
	var u model.User

	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value,
	), &u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprint(value))
		}
		return nil, fmt.Errorf("sqlite: getting user by %s %v: %w", column, value, err)
	}

	if u.Following, err = db.loadIDs(ctx,
		`SELECT followee_id FROM follows WHERE follower_id = ? ORDER BY followee_id`, u.ID); err != nil {
		return nil, fmt.Errorf("sqlite: loading following of %s: %w", u.ID, err)
	}
	if u.Favorites, err = db.loadIDs(ctx,
		`SELECT article_id FROM favorites WHERE user_id = ? ORDER BY article_id`, u.ID); err != nil {
		return nil, fmt.Errorf("sqlite: loading favorites of %s: %w", u.ID, err)
	}

	return &u, nil
}

// loadIDs runs a single-column query and collects the results.
func (db *DB) loadIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateUser saves the profile fields and password hash of an existing user.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET username = ?, email = ?, bio = ?, image = ?, password_hash = ?, updated_at = ?
		 WHERE id = ?`,
		user.Username,
		user.Email,
		user.Bio,
		user.Image,
		user.PasswordHash,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username+" / "+user.Email)
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}

// Upsert inserts or updates a user keyed by their GitHub ID.
//
// An existing GitHub account keeps its internal ID, username and bio; only the
// avatar is refreshed (users may have edited the rest on our side). A new one
// is inserted as given.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	if user.GitHubID == 0 {
		return fmt.Errorf("sqlite: upserting user: github id is required")
	}

	existing, err := db.getUser(ctx, "github_id", user.GitHubID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existing == nil {
		return db.CreateUser(ctx, user)
	}

	if user.Image != "" {
		existing.Image = user.Image
	}
	if err := db.UpdateUser(ctx, existing); err != nil {
		return err
	}
	*user = *existing
	return nil
}

// Follow adds followeeID to followerID's following set. Following twice is a no-op.
func (db *DB) Follow(ctx context.Context, followerID, followeeID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO follows (follower_id, followee_id) VALUES (?, ?)`,
		followerID, followeeID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: %s following %s: %w", followerID, followeeID, err)
	}
	return nil
}

// Unfollow removes followeeID from followerID's following set. Missing rows are ignored.
func (db *DB) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: %s unfollowing %s: %w", followerID, followeeID, err)
	}
	return nil
}

// Package service contains the business rules of the blogging API.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, authorizes, orchestrates, renders
//	Repository (data layer)  → reads/writes the database
//
// Services accept plain values (IDs, usernames, small input structs), never
// *http.Request, and return view values or apperror kinds. They depend on the
// repository interfaces, not on *sqlite.DB, so tests can hand them either a
// fake or an in-memory database.
//
// VIEWERS:
// Most reads take a viewerID that may be empty. Empty or unknown viewers are
// rendered as anonymous; operations that need an identity (feed, writes,
// favorites, comments) fail with apperror.ErrUnauthorized instead.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/conduit/internal/apperror"
	"github.com/sakif/conduit/internal/model"
	"github.com/sakif/conduit/internal/repository"
)

// Pagination bounds for article lists.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ParsePage turns the untrusted limit/offset query strings into list options.
// Empty strings take the defaults; anything that is not a non-negative
// integer is a validation error. A zero limit means the default and limits
// above MaxListLimit are clamped.
func ParsePage(limit, offset string) (repository.ListOptions, error) {
	opts := repository.ListOptions{Limit: DefaultListLimit}

	if limit = strings.TrimSpace(limit); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return opts, apperror.ValidationFailed("limit", "limit must be a non-negative integer")
		}
		opts.Limit = n
	}
	if offset = strings.TrimSpace(offset); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return opts, apperror.ValidationFailed("offset", "offset must be a non-negative integer")
		}
		opts.Offset = n
	}

	return normalizePage(opts), nil
}

func normalizePage(opts repository.ListOptions) repository.ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}

// optionalViewer loads the viewer for rendering. An empty or unknown ID is the
// anonymous viewer (nil); only infrastructure failures are returned.
func optionalViewer(ctx context.Context, users repository.UserRepository, viewerID string) (*model.User, error) {
	if viewerID == "" {
		return nil, nil
	}
	viewer, err := users.GetUserByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading viewer %s: %w", viewerID, err)
	}
	return viewer, nil
}

// requireViewer loads the acting user. A token whose user no longer exists is
// as good as no token.
func requireViewer(ctx context.Context, users repository.UserRepository, viewerID string) (*model.User, error) {
	if viewerID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}
	viewer, err := users.GetUserByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("unknown user")
		}
		return nil, fmt.Errorf("loading viewer %s: %w", viewerID, err)
	}
	return viewer, nil
}

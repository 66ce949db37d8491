package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/conduit/internal/apperror"
	"github.com/sakif/conduit/internal/repository"
	"github.com/sakif/conduit/internal/view"
)

// ProfileService serves public profiles and the follow relation.
type ProfileService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewProfileService(users repository.UserRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, logger: logger}
}

// GetProfile renders username's profile for the (optional) viewer.
func (s *ProfileService) GetProfile(ctx context.Context, username, viewerID string) (view.Profile, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return view.Profile{}, err
	}
	viewer, err := optionalViewer(ctx, s.users, viewerID)
	if err != nil {
		return view.Profile{}, fmt.Errorf("service/profile: %w", err)
	}
	return view.NewProfile(user, viewer), nil
}

// Follow adds username to the viewer's following set. Following someone
// already followed changes nothing.
func (s *ProfileService) Follow(ctx context.Context, viewerID, username string) (view.Profile, error) {
	return s.setFollowing(ctx, viewerID, username, true)
}

// Unfollow removes username from the viewer's following set.
func (s *ProfileService) Unfollow(ctx context.Context, viewerID, username string) (view.Profile, error) {
	return s.setFollowing(ctx, viewerID, username, false)
}

func (s *ProfileService) setFollowing(ctx context.Context, viewerID, username string, follow bool) (view.Profile, error) {
	viewer, err := requireViewer(ctx, s.users, viewerID)
	if err != nil {
		return view.Profile{}, err
	}
	target, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return view.Profile{}, err
	}
	if target.ID == viewer.ID {
		return view.Profile{}, apperror.ValidationFailed("username", "you cannot follow yourself")
	}

	if follow {
		err = s.users.Follow(ctx, viewer.ID, target.ID)
	} else {
		err = s.users.Unfollow(ctx, viewer.ID, target.ID)
	}
	if err != nil {
		return view.Profile{}, fmt.Errorf("service/profile: updating follow %s → %s: %w", viewer.ID, target.ID, err)
	}

	s.logger.Info("follow updated",
		slog.String("follower", viewer.Username),
		slog.String("followee", target.Username),
		slog.Bool("following", follow),
	)

	// Re-read so the rendered flag comes from the stored set.
	viewer, err = requireViewer(ctx, s.users, viewer.ID)
	if err != nil {
		return view.Profile{}, err
	}
	return view.NewProfile(target, viewer), nil
}

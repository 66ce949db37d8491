package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/conduit/internal/apperror"
	"github.com/sakif/conduit/internal/auth"
	"github.com/sakif/conduit/internal/model"
	"github.com/sakif/conduit/internal/repository"
	"github.com/sakif/conduit/internal/view"
)

// maxUsernameAttempts bounds the search for a free username when a GitHub
// login is already taken by another account.
const maxUsernameAttempts = 5

// AuthService owns account lifecycle: registration, password and GitHub
// login, and profile edits of the signed-in user.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// UserPatch carries the optional fields of PUT /api/user. A nil field is left
// unchanged.
type UserPatch struct {
	Username *string
	Email    *string
	Password *string
	Bio      *string
	Image    *string
}

// Register creates a password account and signs the new user in.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (view.AuthUser, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateUsername(username); err != nil {
		return view.AuthUser{}, err
	}
	if err := validateEmail(email); err != nil {
		return view.AuthUser{}, err
	}
	if password == "" {
		return view.AuthUser{}, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return view.AuthUser{}, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return view.AuthUser{}, apperror.Conflict("user", "username or email already taken")
		}
		s.logger.Error("failed to register user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return view.AuthUser{}, fmt.Errorf("service/auth: registering %s: %w", username, err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("username", user.Username))
	return s.signIn(user)
}

// Login checks an email/password pair. Unknown emails and wrong passwords get
// the same answer so callers cannot probe for accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (view.AuthUser, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return view.AuthUser{}, apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return view.AuthUser{}, apperror.ValidationFailed("password", "password is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return view.AuthUser{}, apperror.Unauthorized("email or password is invalid")
		}
		return view.AuthUser{}, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return view.AuthUser{}, apperror.Unauthorized("email or password is invalid")
		}
		return view.AuthUser{}, fmt.Errorf("service/auth: verifying password of %s: %w", user.ID, err)
	}

	return s.signIn(user)
}

// Current returns the signed-in user with a freshly issued token.
func (s *AuthService) Current(ctx context.Context, userID string) (view.AuthUser, error) {
	user, err := requireViewer(ctx, s.users, userID)
	if err != nil {
		return view.AuthUser{}, err
	}
	return s.signIn(user)
}

// UpdateUser applies the present fields of patch to the signed-in user.
func (s *AuthService) UpdateUser(ctx context.Context, userID string, patch UserPatch) (view.AuthUser, error) {
	user, err := requireViewer(ctx, s.users, userID)
	if err != nil {
		return view.AuthUser{}, err
	}

	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if err := validateUsername(username); err != nil {
			return view.AuthUser{}, err
		}
		user.Username = username
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if err := validateEmail(email); err != nil {
			return view.AuthUser{}, err
		}
		user.Email = email
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return view.AuthUser{}, apperror.ValidationFailed("password", "password must not be empty")
		}
		hash, err := s.passwords.Hash(*patch.Password)
		if err != nil {
			return view.AuthUser{}, apperror.ValidationFailed("password", err.Error())
		}
		user.PasswordHash = hash
	}
	if patch.Bio != nil {
		user.Bio = *patch.Bio
	}
	if patch.Image != nil {
		user.Image = strings.TrimSpace(*patch.Image)
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return view.AuthUser{}, apperror.Conflict("user", "username or email already taken")
		}
		return view.AuthUser{}, fmt.Errorf("service/auth: updating user %s: %w", user.ID, err)
	}

	s.logger.Info("user updated", slog.String("userID", user.ID))
	return s.signIn(user)
}

// LoginOrRegisterGitHub signs in the account linked to a GitHub identity,
// creating it on first login.
//
// A new account proposes the GitHub login as username. If a different account
// already holds it, a short random suffix is added. A hidden or already-used
// email falls back to GitHub's noreply address, since emails are unique here.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (view.AuthUser, error) {
	if ghUser == nil {
		return view.AuthUser{}, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	email, err := s.githubEmail(ctx, ghUser)
	if err != nil {
		return view.AuthUser{}, err
	}

	username := ghUser.Login
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		if attempt > 0 {
			username = ghUser.Login + "-" + xid.New().String()[14:]
		}

		user := &model.User{
			GitHubID: ghUser.ID,
			Username: username,
			Email:    email,
			Bio:      ghUser.Bio,
			Image:    ghUser.AvatarURL,
		}
		err := s.users.Upsert(ctx, user)
		if errors.Is(err, apperror.ErrConflict) {
			continue
		}
		if err != nil {
			return view.AuthUser{}, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
		}

		s.logger.Info("user authenticated via GitHub",
			slog.String("userID", user.ID),
			slog.String("username", user.Username),
		)
		return s.signIn(user)
	}

	return view.AuthUser{}, apperror.Conflict("user", ghUser.Login)
}

func (s *AuthService) githubEmail(ctx context.Context, ghUser *auth.GitHubUser) (string, error) {
	noreply := fmt.Sprintf("%d+%s@users.noreply.github.com", ghUser.ID, ghUser.Login)
	if ghUser.Email == "" {
		return noreply, nil
	}

	existing, err := s.users.GetUserByEmail(ctx, ghUser.Email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return ghUser.Email, nil
	case err != nil:
		return "", fmt.Errorf("service/auth: checking email %s: %w", ghUser.Email, err)
	case existing.GitHubID == ghUser.ID:
		return ghUser.Email, nil
	default:
		return noreply, nil
	}
}

func (s *AuthService) signIn(user *model.User) (view.AuthUser, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return view.AuthUser{}, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return view.NewAuthUser(user, token), nil
}

func validateUsername(username string) error {
	if username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if strings.ContainsAny(username, " /\t\n") {
		return apperror.ValidationFailed("username", "username must not contain spaces or slashes")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperror.ValidationFailed("email", "email is invalid")
	}
	return nil
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/rs/xid"

	"github.com/sakif/conduit/internal/auth"
	"github.com/sakif/conduit/internal/service"
)

const stateCookie = "oauth_state"

// GitHubAuthenticator is the part of *auth.GitHubProvider the handler uses.
type GitHubAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler serves registration, login, the current user, and the
// optional GitHub OAuth flow.
type AuthHandler struct {
	users     *service.AuthService
	github    GitHubAuthenticator // nil when GitHub login is not configured
	cookieTTL time.Duration
	logger    *slog.Logger
}

func NewAuthHandler(users *service.AuthService, github GitHubAuthenticator, cookieTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		github:    github,
		cookieTTL: cookieTTL,
		logger:    logger,
	}
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users
// BODY: {"user": {"username": "jake", "email": "jake@jake.jake", "password": "jakejake"}}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.User.Username, req.User.Email, req.User.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, render.M{"user": user})
}

// HandleLogin exchanges email and password for a token.
//
// HTTP: POST /api/users/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Login(r.Context(), req.User.Email, req.User.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, render.M{"user": user})
}

// HandleCurrentUser returns the signed-in user with a fresh token.
//
// HTTP: GET /api/user (RequireAuth)
func (h *AuthHandler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.users.Current(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, render.M{"user": user})
}

// HandleUpdateUser edits the signed-in user. Absent fields are kept.
//
// HTTP: PUT or PATCH /api/user (RequireAuth)
func (h *AuthHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req updateUserRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateUser(r.Context(), userID, service.UserPatch{
		Username: req.User.Username,
		Email:    req.User.Email,
		Password: req.User.Password,
		Bio:      req.User.Bio,
		Image:    req.User.Image,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, render.M{"user": user})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived HttpOnly cookie and sent to
// GitHub, which echoes it on the callback. A callback whose state does not
// match the cookie was not started by this browser.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow: check state, exchange the
// code, sign the account in, and store the token in the "token" cookie.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || query.Get("state") != cookie.Value {
		h.logger.Warn("auth callback: invalid state")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid OAuth state", Field: "state"})
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "GitHub authorization was denied"})
		return
	}

	code := query.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "missing OAuth code", Field: "code"})
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "upstream_error", Message: "GitHub authentication failed"})
		return
	}

	user, err := h.users.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	// Secure should be set when served over HTTPS.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    user.Token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, render.M{"user": user})
}

// HandleLogout deletes the token cookie. The JWT itself stays valid until it
// expires; header-based clients simply drop it.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, render.M{"message": "logged out"})
}

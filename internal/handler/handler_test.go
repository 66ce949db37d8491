package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/conduit/internal/auth"
	"github.com/sakif/conduit/internal/handler"
	"github.com/sakif/conduit/internal/model"
	"github.com/sakif/conduit/internal/repository/sqlite"
	"github.com/sakif/conduit/internal/service"
	"github.com/sakif/conduit/internal/slug"
)

// testUserHeader stands in for a verified token: the test router copies it
// into the request context the way auth.RequireAuth would.
const testUserHeader = "X-Test-User"

type env struct {
	db     *sqlite.DB
	router chi.Router
}

// fakeGitHub implements handler.GitHubAuthenticator without network calls.
type fakeGitHub struct {
	user *auth.GitHubUser
	err  error
}

func (f *fakeGitHub) AuthURL(state string) string {
	return "https://github.example/authorize?state=" + state
}

func (f *fakeGitHub) Exchange(ctx context.Context, code string) (*auth.GitHubUser, error) {
	return f.user, f.err
}

func newEnv(t *testing.T, github handler.GitHubAuthenticator) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	authHandler := handler.NewAuthHandler(
		service.NewAuthService(db, tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), logger),
		github, time.Hour, logger)
	profiles := handler.NewProfileHandler(service.NewProfileService(db, logger), logger)
	articles := handler.NewArticleHandler(service.NewArticleService(db, db, slug.New(), logger), logger)
	comments := handler.NewCommentHandler(service.NewCommentService(db, db, db, logger), logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get(testUserHeader); id != "" {
				req = req.WithContext(auth.WithUserID(req.Context(), id))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/api/users", authHandler.HandleRegister)
	r.Post("/api/users/login", authHandler.HandleLogin)
	r.Get("/api/user", authHandler.HandleCurrentUser)
	r.Get("/api/profiles/{username}", profiles.HandleGet)
	r.Post("/api/profiles/{username}/follow", profiles.HandleFollow)
	r.Get("/api/articles", articles.HandleList)
	r.Post("/api/articles", articles.HandleCreate)
	r.Get("/api/articles/{slug}", articles.HandleGet)
	r.Put("/api/articles/{slug}", articles.HandleUpdate)
	r.Delete("/api/articles/{slug}", articles.HandleDelete)
	r.Post("/api/articles/{slug}/favorite", articles.HandleFavorite)
	r.Get("/api/articles/{slug}/comments", comments.HandleList)
	r.Post("/api/articles/{slug}/comments", comments.HandleCreate)
	r.Delete("/api/articles/{slug}/comments/{id}", comments.HandleDelete)
	r.Get("/api/tags", articles.HandleTags)
	r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
	r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	r.Post("/auth/logout", authHandler.HandleLogout)

	return &env{db: db, router: r}
}

func (e *env) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(testUserHeader, userID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) user(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com"}
	require.NoError(t, e.db.CreateUser(context.Background(), u))
	return u
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// =========================================================================
// USERS
// =========================================================================

func TestRegisterLoginCurrent(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/users", "",
		`{"user":{"username":"jake","email":"jake@jake.jake","password":"jakejake"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "jake", user["username"])
	assert.NotEmpty(t, user["token"])
	assert.NotContains(t, user, "password")

	rec = e.do(t, http.MethodPost, "/api/users/login", "",
		`{"user":{"email":"jake@jake.jake","password":"jakejake"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/users/login", "",
		`{"user":{"email":"jake@jake.jake","password":"nope"}}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/user", "ghost", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBindErrors(t *testing.T) {
	e := newEnv(t, nil)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"malformed JSON", `{"user":`, "body"},
		{"empty body", ``, "body"},
		{"missing wrapper", `{"username":"jake"}`, "user"},
		{"missing field", `{"user":{"email":"a@b.c","password":"x"}}`, "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/users", "", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantField, decode(t, rec)["field"])
		})
	}
}

// =========================================================================
// ARTICLES
// =========================================================================

func TestArticleLifecycle(t *testing.T) {
	e := newEnv(t, nil)
	jake := e.user(t, "jake")
	anna := e.user(t, "anna")

	rec := e.do(t, http.MethodPost, "/api/articles", jake.ID,
		`{"article":{"title":"How to train your dragon","description":"Ever wonder how?","body":"You have to believe","tagList":["dragons","training"]}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	article := decode(t, rec)["article"].(map[string]any)
	slugValue := article["slug"].(string)
	assert.Regexp(t, `^how-to-train-your-dragon-[0-9a-z]{6}$`, slugValue)
	assert.Equal(t, false, article["favorited"])

	rec = e.do(t, http.MethodGet, "/api/articles/"+slugValue, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/articles/"+slugValue, anna.ID, `{"article":{"body":"mine now"}}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/articles/"+slugValue+"/favorite", anna.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	favorited := decode(t, rec)["article"].(map[string]any)
	assert.Equal(t, true, favorited["favorited"])
	assert.Equal(t, float64(1), favorited["favoritesCount"])

	rec = e.do(t, http.MethodGet, "/api/articles?favorited=anna", "", "")
	list := decode(t, rec)
	assert.Equal(t, float64(1), list["articlesCount"])

	rec = e.do(t, http.MethodGet, "/api/tags", "", "")
	assert.JSONEq(t, `{"tags":["dragons","training"]}`, rec.Body.String())

	rec = e.do(t, http.MethodDelete, "/api/articles/"+slugValue, jake.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"success"}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/articles/"+slugValue, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListArticles_BadPager(t *testing.T) {
	e := newEnv(t, nil)

	for _, query := range []string{"limit=abc", "limit=-1", "offset=x"} {
		rec := e.do(t, http.MethodGet, "/api/articles?"+query, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}

	rec := e.do(t, http.MethodGet, "/api/articles?limit=5&offset=0", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"articles":[],"articlesCount":0}`, rec.Body.String())
}

// =========================================================================
// COMMENTS
// =========================================================================

func TestComments(t *testing.T) {
	e := newEnv(t, nil)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	rec := e.do(t, http.MethodPost, "/api/articles", alice.ID, `{"article":{"title":"Hello World","body":"b"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	slugValue := decode(t, rec)["article"].(map[string]any)["slug"].(string)

	rec = e.do(t, http.MethodPost, "/api/articles/"+slugValue+"/comments", bob.ID, `{"comment":{"body":""}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/articles/missing/comments", bob.ID, `{"comment":{"body":"hi"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/articles/"+slugValue+"/comments", bob.ID, `{"comment":{"body":"hi alice"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	commentID := decode(t, rec)["comment"].(map[string]any)["id"].(string)

	rec = e.do(t, http.MethodDelete, "/api/articles/"+slugValue+"/comments/"+commentID, alice.ID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/articles/"+slugValue+"/comments/"+commentID, bob.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/articles/"+slugValue+"/comments", "", "")
	assert.JSONEq(t, `{"comments":[]}`, rec.Body.String())
}

// =========================================================================
// PROFILES
// =========================================================================

func TestProfiles(t *testing.T) {
	e := newEnv(t, nil)
	jake := e.user(t, "jake")
	e.user(t, "anna")

	rec := e.do(t, http.MethodPost, "/api/profiles/anna/follow", jake.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"profile":{"username":"anna","bio":"","image":"","following":true}}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/profiles/anna", "", "")
	assert.JSONEq(t, `{"profile":{"username":"anna","bio":"","image":"","following":false}}`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/profiles/nobody", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =========================================================================
// GITHUB OAUTH
// =========================================================================

func TestGitHubLogin_SetsStateAndRedirects(t *testing.T) {
	e := newEnv(t, &fakeGitHub{})

	rec := e.do(t, http.MethodGet, "/auth/github/login", "", "")

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "oauth_state", cookies[0].Name)
	assert.Contains(t, rec.Header().Get("Location"), "state="+cookies[0].Value)
}

func TestGitHubCallback(t *testing.T) {
	callback := func(e *env, state, cookie string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=abc&state="+state, nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: "oauth_state", Value: cookie})
		}
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("state mismatch", func(t *testing.T) {
		e := newEnv(t, &fakeGitHub{user: &auth.GitHubUser{ID: 1, Login: "octocat"}})
		assert.Equal(t, http.StatusBadRequest, callback(e, "a", "b").Code)
		assert.Equal(t, http.StatusBadRequest, callback(e, "a", "").Code)
	})

	t.Run("exchange fails", func(t *testing.T) {
		e := newEnv(t, &fakeGitHub{err: errors.New("github down")})
		assert.Equal(t, http.StatusBadGateway, callback(e, "s", "s").Code)
	})

	t.Run("success sets token cookie", func(t *testing.T) {
		e := newEnv(t, &fakeGitHub{user: &auth.GitHubUser{ID: 1, Login: "octocat", AvatarURL: "a.png"}})

		rec := callback(e, "s", "s")

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		user := decode(t, rec)["user"].(map[string]any)
		assert.Equal(t, "octocat", user["username"])

		var token string
		for _, c := range rec.Result().Cookies() {
			if c.Name == auth.CookieName {
				token = c.Value
			}
		}
		assert.Equal(t, user["token"], token)
	})
}

func TestLogout_ClearsCookie(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/auth/logout", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)
}

// =========================================================================
// FAILURE LOGGING
// =========================================================================

func TestArticleHandler_LogsStoreFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	articles := handler.NewArticleHandler(service.NewArticleService(db, db, slug.New(), logger), logger)
	require.NoError(t, db.Close())

	rec := httptest.NewRecorder()
	articles.HandleTags(rec, httptest.NewRequest(http.MethodGet, "/api/tags", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "closed", "store details stay in the log")
	assert.Contains(t, buf.String(), "request failed")
	assert.Contains(t, buf.String(), "path=/api/tags")
}

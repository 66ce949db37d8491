package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoUserID writes the user ID found in the context, or "anonymous".
var echoUserID = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if id, ok := UserIDFromContext(r.Context()); ok {
		w.Write([]byte(id))
		return
	}
	w.Write([]byte("anonymous"))
})

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate("user-1")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
		wantBody   string
	}{
		{"token scheme", "Token " + token, "", http.StatusOK, "user-1"},
		{"bearer scheme", "Bearer " + token, "", http.StatusOK, "user-1"},
		{"cookie fallback", "", token, http.StatusOK, "user-1"},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"unknown scheme", "Basic " + token, "", http.StatusUnauthorized, ""},
		{"invalid token", "Token nope", "", http.StatusUnauthorized, ""},
	}

	handler := RequireAuth(ts)(echoUserID)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"unauthorized"`)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate("user-1")
	require.NoError(t, err)
	handler := OptionalAuth(ts)(echoUserID)

	for header, want := range map[string]string{
		"Token " + token: "user-1",
		"":               "anonymous",
		"Token garbage":  "anonymous",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, rec.Body.String(), "header %q", header)
	}
}

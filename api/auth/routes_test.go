package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnify/learnify-gateway/apierr"
	"github.com/learnify/learnify-gateway/auth"
	"github.com/learnify/learnify-gateway/types"
)

type stubAuthenticator struct {
	identity *types.Identity
	err      error
	document string
}

func (s *stubAuthenticator) Authenticate(ctx context.Context, document string, password string) (*types.Identity, string, error) {
	s.document = document
	if s.err != nil {
		return nil, "", s.err
	}
	if document == "" || password == "" {
		return nil, "", auth.ErrMissingCredentials
	}
	return s.identity, "backend-access", nil
}

func newRouter(t *testing.T, authenticator auth.CredentialAuthenticator, limiter *LoginLimiter) http.Handler {
	t.Helper()
	jwtManager, err := auth.NewJWTManager([]byte("test-secret-with-enough-bytes-123"), time.Hour)
	require.NoError(t, err)
	manager := auth.NewManager(authenticator, jwtManager, auth.CookieOptions{}, "/login", zerolog.Nop())

	router := chi.NewRouter()
	router.Use(manager.Attach)
	router.Mount("/api/auth", Routes(manager, limiter))
	return router
}

func post(handler http.Handler, contentType string, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestLogin_JSON(t *testing.T) {
	stub := &stubAuthenticator{identity: &types.Identity{ID: "3", Name: "Ada", Role: types.RoleInstructor}}
	router := newRouter(t, stub, nil)

	w := post(router, "application/json", `{"document":"12345","password":"pw"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", stub.document)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body, "token")

	var session types.Session
	require.NoError(t, json.Unmarshal(body["session"], &session))
	assert.Equal(t, types.RoleInstructor, session.Role)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotContains(t, w.Body.String(), cookies[0].Value)
}

func TestLogin_FormWithUsernameAlias(t *testing.T) {
	stub := &stubAuthenticator{identity: &types.Identity{ID: "3", Role: types.RoleStudent}}
	router := newRouter(t, stub, nil)

	form := url.Values{"username": {"user"}, "password": {"pw"}}
	w := post(router, "application/x-www-form-urlencoded", form.Encode())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user", stub.document)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		body    string
		status  int
		message string
	}{
		{"malformed json", nil, `{`, http.StatusBadRequest, ""},
		{"missing credentials", nil, `{"document":"user"}`, http.StatusBadRequest, "document and password are required"},
		{
			"bad credentials",
			auth.NewSignInError(apierr.NewAPIError("bad credentials", apierr.TypeError, http.StatusUnauthorized)),
			`{"document":"user","password":"pw"}`,
			http.StatusUnauthorized,
			"bad credentials",
		},
		{
			"backend unreachable",
			auth.NewSignInError(apierr.NewGenericError(context.DeadlineExceeded)),
			`{"document":"user","password":"pw"}`,
			http.StatusBadGateway,
			apierr.DefaultGenericMessage,
		},
		{
			"invalid identity",
			auth.NewSignInError(auth.ErrInvalidIdentity),
			`{"document":"user","password":"pw"}`,
			http.StatusBadGateway,
			apierr.DefaultGenericMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(t, &stubAuthenticator{err: tt.err}, nil)

			w := post(router, "application/json", tt.body)

			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, w.Result().Cookies())

			var body types.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Message)
			}
		})
	}
}

func TestSessionAndLogout(t *testing.T) {
	stub := &stubAuthenticator{identity: &types.Identity{ID: "8", Role: types.RoleAdmin}}
	router := newRouter(t, stub, nil)

	// No session yet
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	login := post(router, "application/json", `{"document":"user","password":"pw"}`)
	require.Equal(t, http.StatusOK, login.Code)
	cookie := login.Result().Cookies()[0]

	r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	r.AddCookie(cookie)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var body SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, types.UserID("8"), body.Session.Subject)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		r = httptest.NewRequest(method, "/api/auth/logout", nil)
		r.AddCookie(cookie)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		require.Len(t, w.Result().Cookies(), 1)
		assert.Empty(t, w.Result().Cookies()[0].Value)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter := NewLoginLimiter(ctx, 0.001, 2, time.Minute, time.Minute)
	router := newRouter(t, &stubAuthenticator{identity: &types.Identity{ID: "1", Role: types.RoleStudent}}, limiter)

	for i := 0; i < 2; i++ {
		w := post(router, "application/json", `{"document":"user","password":"pw"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := post(router, "application/json", `{"document":"user","password":"pw"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

package backend

import (
	"encoding/json"
	"io"
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

	"github.com/learnify/learnify-gateway/auth"
	"github.com/learnify/learnify-gateway/backend"
	"github.com/learnify/learnify-gateway/types"
)

func newRelay(t *testing.T, upstream http.HandlerFunc, session *types.Session) http.Handler {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	baseURL, err := url.Parse(server.URL + "/v1")
	require.NoError(t, err)
	client, err := backend.New(baseURL)
	require.NoError(t, err)

	jwtManager, err := auth.NewJWTManager([]byte("test-secret-with-enough-bytes-123"), time.Hour)
	require.NoError(t, err)
	manager := auth.NewManager(nil, jwtManager, auth.CookieOptions{}, "/login", zerolog.Nop())

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session != nil {
				r = r.WithContext(auth.WithSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	})
	router.Mount("/api/backend", Routes(client, manager, zerolog.Nop()))
	return router
}

var signedIn = &types.Session{ID: "s", Subject: "1", Role: types.RoleStudent, BackendToken: "backend-access"}

func TestRelay_EveryVerb(t *testing.T) {
	upstream := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer backend-access", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/courses/7", r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("view"))

		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"method": r.Method,
			"body":   string(body),
		})
	}
	router := newRelay(t, upstream, signedIn)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			var body io.Reader
			if method != http.MethodGet && method != http.MethodDelete {
				body = strings.NewReader(`{"title":"Go"}`)
			}
			r := httptest.NewRequest(method, "/api/backend/courses/7?view=full", body)
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			require.Equal(t, http.StatusOK, w.Code)
			var echoed map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &echoed))
			assert.Equal(t, method, echoed["method"])
			if body != nil {
				assert.JSONEq(t, `{"title":"Go"}`, echoed["body"])
			}
		})
	}
}

func TestRelay_RequiresSession(t *testing.T) {
	called := false
	router := newRelay(t, func(w http.ResponseWriter, r *http.Request) { called = true }, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/backend/courses", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestRelay_SessionWithoutBackendTokenFailsClosed(t *testing.T) {
	called := false
	router := newRelay(t, func(w http.ResponseWriter, r *http.Request) { called = true },
		&types.Session{ID: "s", Subject: "1", Role: types.RoleAdmin})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/backend/courses", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.False(t, called)
}

func TestRelay_Failures(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		status  int
		body    string
		code    int
		message string
	}{
		{"structured get failure", http.MethodGet, http.StatusNotFound, `{"title":"course not found"}`, http.StatusNotFound, "course not found"},
		{"get server error wraps", http.MethodGet, http.StatusInternalServerError, `{"title":"db down"}`, http.StatusInternalServerError, "db down"},
		{"post server error demoted", http.MethodPost, http.StatusInternalServerError, `{"title":"db down"}`, http.StatusBadGateway, "an unexpected error occurred"},
		{"post conflict wraps", http.MethodPost, http.StatusConflict, `{"title":"already enrolled"}`, http.StatusConflict, "already enrolled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, signedIn)

			r := httptest.NewRequest(tt.method, "/api/backend/enrollments", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			assert.Equal(t, tt.code, w.Code)
			var body types.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Message)
			assert.Equal(t, "error", body.Type)
		})
	}
}

func TestRelay_EmptyResponseIsNoContent(t *testing.T) {
	router := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, signedIn)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/backend/enrollments/3", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRelay_RejectsNonJSONBody(t *testing.T) {
	router := newRelay(t, func(w http.ResponseWriter, r *http.Request) {}, signedIn)

	r := httptest.NewRequest(http.MethodPost, "/api/backend/courses", strings.NewReader("title=Go"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelay_RejectsPathsEscapingTheBasePath(t *testing.T) {
	called := false
	router := newRelay(t, func(w http.ResponseWriter, r *http.Request) { called = true }, signedIn)

	for _, target := range []string{
		"/api/backend/%2e%2e/internal/admin",
		"/api/backend/courses/%2E%2E/%2e%2e/internal",
		"/api/backend/courses/%2e/7",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
	assert.False(t, called)
}

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnify/learnify-gateway/auth"
	"github.com/learnify/learnify-gateway/config"
)

// fakeBackend answers the login exchange for two users and echoes one resource
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login":
			var req auth.LoginRequest
			json.NewDecoder(r.Body).Decode(&req)
			switch {
			case req.Document == "student" && req.Password == "pw":
				w.Write([]byte(`{"id":1,"name":"Stu","role":1,"access_token":"student-token"}`))
			case req.Document == "admin" && req.Password == "pw":
				w.Write([]byte(`{"id":2,"name":"Ada","role":0,"access_token":"admin-token"}`))
			default:
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"title":"bad credentials"}`))
			}
		case "/courses":
			w.Write([]byte(`{"authorization":"` + r.Header.Get("Authorization") + `"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, backendURL string) config.Config {
	t.Helper()
	u, err := url.Parse(backendURL)
	require.NoError(t, err)
	return config.Config{
		Port:                   3000,
		Environment:            "test",
		AppVersion:             "test",
		BackendURL:             u,
		BackendTimeout:         5 * time.Second,
		BackendMaxResponseSize: datasize.MB,
		Secret:                 []byte("test-secret-with-enough-bytes-123"),
		SessionMaxAge:          time.Hour,
		LoginRate:              100,
		LoginBurst:             100,
		PublicRoutes:           config.DefaultPublicRoutes,
		RouteRoot:              "/login",
		RouteUnauthorized:      "/unauthorized",
		RouteRestricted:        "/settings",
		GuardExclude:           config.DefaultGuardExclude,
		AllowedOrigins:         []string{"*"},
	}
}

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server, err := NewAPIServer(ctx, testConfig(t, fakeBackend(t).URL), zerolog.Nop())
	require.NoError(t, err)

	gateway := httptest.NewServer(server.routes())
	t.Cleanup(gateway.Close)
	return gateway
}

// client returns an HTTP client that does not follow redirects
func client() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func login(t *testing.T, gateway *httptest.Server, document string) *http.Cookie {
	t.Helper()
	res, err := client().Post(gateway.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"document":"`+document+`","password":"pw"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	for _, cookie := range res.Cookies() {
		if cookie.Name == auth.SessionCookieName {
			return cookie
		}
	}
	t.Fatal("login did not set the session cookie")
	return nil
}

func get(t *testing.T, gateway *httptest.Server, path string, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, gateway.URL+path, nil)
	require.NoError(t, err)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res, err := client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestNewAPIServer_RejectsLoopingRoutes(t *testing.T) {
	cfg := testConfig(t, "http://backend.invalid")
	cfg.RouteRoot = "/home"

	_, err := NewAPIServer(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestGateway_HealthAndMetrics(t *testing.T) {
	gateway := newGateway(t)

	assert.Equal(t, http.StatusNoContent, get(t, gateway, "/health", nil).StatusCode)
	assert.Equal(t, http.StatusOK, get(t, gateway, "/metrics", nil).StatusCode)
}

func TestGateway_GuardsPages(t *testing.T) {
	gateway := newGateway(t)
	student := login(t, gateway, "student")
	admin := login(t, gateway, "admin")

	tests := []struct {
		name     string
		path     string
		cookie   *http.Cookie
		status   int
		location string
	}{
		{"public page without session", "/login", nil, http.StatusOK, ""},
		{"home without session", "/", nil, http.StatusFound, "/login"},
		{"settings without session", "/settings", nil, http.StatusFound, "/login"},
		{"forged cookie", "/", &http.Cookie{Name: auth.SessionCookieName, Value: "forged"}, http.StatusFound, "/login"},
		{"home as student", "/", student, http.StatusOK, ""},
		{"settings as student", "/settings", student, http.StatusFound, "/unauthorized"},
		{"settings as admin", "/settings", admin, http.StatusOK, ""},
		{"unauthorized page as student", "/unauthorized", student, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := get(t, gateway, tt.path, tt.cookie)
			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, tt.location, res.Header.Get("Location"))
		})
	}
}

func TestGateway_LoginFailure(t *testing.T) {
	gateway := newGateway(t)

	res, err := client().Post(gateway.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"document":"student","password":"wrong"}`))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Empty(t, res.Cookies())

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "bad credentials", body["message"])
	assert.Equal(t, "error", body["type"])
}

func TestGateway_RelayUsesSessionBackendToken(t *testing.T) {
	gateway := newGateway(t)
	student := login(t, gateway, "student")

	res := get(t, gateway, "/api/backend/courses", student)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "Bearer student-token", body["authorization"])

	assert.Equal(t, http.StatusUnauthorized, get(t, gateway, "/api/backend/courses", nil).StatusCode)
}

func TestGateway_Logout(t *testing.T) {
	gateway := newGateway(t)
	student := login(t, gateway, "student")

	res := get(t, gateway, "/api/auth/logout", student)
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res = get(t, gateway, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/mailregistry/internal/config"
	"github.com/songzhibin97/mailregistry/pkg/log"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Mode = "test"
	cfg.Auth.JWT.Secret = "server-test-secret"
	cfg.Auth.BcryptCost = 4
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(context.Background(), cfg, WithLogger(log.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func serve(s *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := serve(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mailregistry_http_requests_total{method="GET",route="/health",status_code="200"} 1`)
}

func TestServer_NoRouteAndAuth(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := serve(s, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Route introuvable"}`, w.Body.String())

	w = serve(s, http.MethodGet, "/api/mail-in", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := serve(s, http.MethodOptions, "/api/mail-in", map[string]string{
		"Origin":                        "https://mairie.example",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	s := newTestServer(t, cfg)

	w := serve(s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_WithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Redis.Address = mr.Addr()
	s := newTestServer(t, cfg)

	w := serve(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status     string                     `json:"status"`
		Components map[string]json.RawMessage `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Contains(t, body.Components, "cache")
}

func TestServer_UnreachableCacheIsOptional(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Redis.Address = "127.0.0.1:1"
	s := newTestServer(t, cfg)

	w := serve(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, strings.Contains(w.Body.String(), `"cache"`))
}

func TestServer_RejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWT.Secret = ""
	_, err := New(context.Background(), cfg, WithLogger(log.Nop()))
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Database.Type = "sqlite"
	_, err = New(context.Background(), cfg, WithLogger(log.Nop()))
	assert.Error(t, err)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Address = "127.0.0.1:0"
	s, err := New(context.Background(), cfg, WithLogger(log.Nop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}

func TestServer_LoginIsThrottled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.LoginLimit.Burst = 2
	s := newTestServer(t, cfg)

	login := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"id":"ABCD","password":"motdepasse"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "198.51.100.7:5555"
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusTooManyRequests, login())
}

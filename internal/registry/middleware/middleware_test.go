package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/mailregistry/internal/config"
	"github.com/songzhibin97/mailregistry/internal/registry/auth"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT(t *testing.T) *auth.JWTManager {
	t.Helper()
	jm, err := auth.NewJWTManager("test-secret", "HS256", time.Hour, "mailregistry")
	require.NoError(t, err)
	return jm
}

func protectedEngine(jm *auth.JWTManager, admin bool) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(log.Nop()))
	group := r.Group("/api", RequireAuth(jm))
	if admin {
		group.Use(RequireAdmin())
	}
	group.GET("/me", func(c *gin.Context) {
		caller, _ := registry.CallerFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"success": true, "data": caller})
	})
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	jm := newJWT(t)
	r := protectedEngine(jm, false)

	token, _, err := jm.GenerateToken(registry.Caller{ID: "ABCD", Role: registry.RoleUser, Kind: registry.PrincipalUser})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := do(r, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				assert.Contains(t, w.Body.String(), `"success":false`)
			} else {
				assert.Contains(t, w.Body.String(), `"id":"ABCD"`)
			}
		})
	}
}

func TestRequireAuthRejectsForeignSecret(t *testing.T) {
	other, err := auth.NewJWTManager("another-secret", "HS256", time.Hour, "mailregistry")
	require.NoError(t, err)
	token, _, err := other.GenerateToken(registry.Caller{ID: "1", Role: registry.RoleAdmin, Kind: registry.PrincipalAdmin})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := do(protectedEngine(newJWT(t), false), req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	jm := newJWT(t)
	r := protectedEngine(jm, true)

	userToken, _, err := jm.GenerateToken(registry.Caller{ID: "ABCD", Role: registry.RoleUser, Kind: registry.PrincipalUser})
	require.NoError(t, err)
	adminToken, _, err := jm.GenerateToken(registry.Caller{ID: "1", Role: registry.RoleAdmin, Kind: registry.PrincipalAdmin})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	assert.Equal(t, http.StatusForbidden, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, log.RequestIDFrom(c.Request.Context()))
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = do(r, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", w.Body.String())
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(log.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := do(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Erreur interne du serveur"}`, w.Body.String())
}

func TestAccessLogPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), AccessLog(log.Nop()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestCORS(t *testing.T) {
	cfg := config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://mairie.example"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization"},
		MaxAge:         600,
	}
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("preflight allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", "https://mairie.example")
		req.Header.Set("Access-Control-Request-Method", "GET")
		w := do(r, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://mairie.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("preflight refused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Access-Control-Request-Method", "GET")
		assert.Equal(t, http.StatusForbidden, do(r, req).Code)
	})

	t.Run("simple request from unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := do(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disabled", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS(config.CORSConfig{}))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "https://mairie.example")
		w := do(r, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestTracingKeepsStatus(t *testing.T) {
	r := gin.New()
	r.Use(Tracing())
	r.GET("/mail/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/mail/3", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/mailregistry/internal/registry/auth"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// RequireAuth validates the bearer token and stores the caller identity in
// the request context
func RequireAuth(jwt *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, "Authentification requise")
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, http.StatusUnauthorized, "Format d'autorisation invalide")
			return
		}

		claims, err := jwt.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			abort(c, http.StatusUnauthorized, "Session invalide ou expirée")
			return
		}

		c.Request = c.Request.WithContext(registry.WithCaller(c.Request.Context(), claims.Caller()))
		c.Next()
	}
}

// RequireAdmin restricts a route group to callers holding the ADMIN role.
// It must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := registry.CallerFrom(c.Request.Context())
		if !ok {
			abort(c, http.StatusUnauthorized, "Authentification requise")
			return
		}
		if !caller.IsAdmin() {
			abort(c, http.StatusForbidden, "Accès réservé aux administrateurs")
			return
		}
		c.Next()
	}
}

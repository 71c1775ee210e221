package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/mailregistry/internal/registry/admin"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

type loginRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Caller    registry.Caller `json:"caller"`
	Profile   interface{}     `json:"profile"`
}

// Login handles POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.issue(c, registry.Caller{ID: u.ID, Role: u.Role, Kind: registry.PrincipalUser}, u)
}

// AdminLogin handles POST /api/auth/admin/login
func (h *Handler) AdminLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}

	a, err := h.admins.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.issue(c, admin.Caller(a), a)
}

func (h *Handler) issue(c *gin.Context, caller registry.Caller, profile interface{}) {
	token, expiresAt, err := h.jwt.GenerateToken(caller)
	if err != nil {
		h.fail(c, registry.NewInternalError("TOKEN_GENERATION_FAILED", "failed to issue session token", err))
		return
	}
	done(c, session{Token: token, ExpiresAt: expiresAt, Caller: caller, Profile: profile}, "Connexion réussie")
}

// Me handles GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	caller := h.caller(c)
	ctx := c.Request.Context()

	var (
		profile interface{}
		err     error
	)
	switch caller.Kind {
	case registry.PrincipalAdmin:
		id, convErr := strconv.ParseInt(caller.ID, 10, 64)
		if convErr != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response{Error: "Session invalide ou expirée"})
			return
		}
		profile, err = h.admins.GetByID(ctx, id, false)
	default:
		profile, err = h.users.GetByID(ctx, caller.ID, false)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	ok(c, gin.H{"caller": caller, "profile": profile})
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/mailregistry/internal/registry/admin"
	"github.com/songzhibin97/mailregistry/internal/registry/user"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

type createUserRequest struct {
	ID        string        `json:"id"`
	Password  string        `json:"password"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Email     string        `json:"email"`
	ServiceID int64         `json:"serviceId"`
	Role      registry.Role `json:"role"`
}

type updateUserRequest struct {
	Password  *string        `json:"password"`
	FirstName *string        `json:"firstName"`
	LastName  *string        `json:"lastName"`
	Email     *string        `json:"email"`
	ServiceID *int64         `json:"serviceId"`
	Role      *registry.Role `json:"role"`
	Active    *bool          `json:"isActive"`
}

type adminRequest struct {
	Username  *string `json:"username"`
	Password  *string `json:"password"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Active    *bool   `json:"isActive"`
}

// ListUsers handles GET /api/users
func (h *Handler) ListUsers(c *gin.Context) {
	serviceID, err := queryInt64(c, "serviceId")
	if err != nil {
		h.fail(c, err)
		return
	}

	page, err := h.users.List(c.Request.Context(), registry.UserFilter{
		ListOptions: listOptions(c),
		ServiceID:   serviceID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, page)
}

// GetUser handles GET /api/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.users.GetByID(c.Request.Context(), c.Param("id"), queryBool(c, "includeInactive"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, u)
}

// CreateUser handles POST /api/users
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}

	u, err := h.users.Create(c.Request.Context(), user.CreateInput(req))
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, u, "Utilisateur créé avec succès")
}

// UpdateUser handles PUT /api/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}

	u, err := h.users.Update(c.Request.Context(), c.Param("id"), user.UpdateInput(req))
	if err != nil {
		h.fail(c, err)
		return
	}
	done(c, u, "Utilisateur mis à jour avec succès")
}

// DeleteUser handles DELETE /api/users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	done(c, nil, "Utilisateur désactivé avec succès")
}

// ListAdmins handles GET /api/admins
func (h *Handler) ListAdmins(c *gin.Context) {
	page, err := h.admins.List(c.Request.Context(), listOptions(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, page)
}

// GetAdmin handles GET /api/admins/:id
func (h *Handler) GetAdmin(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	a, err := h.admins.GetByID(c.Request.Context(), id, queryBool(c, "includeInactive"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, a)
}

// CreateAdmin handles POST /api/admins
func (h *Handler) CreateAdmin(c *gin.Context) {
	var req adminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}

	a, err := h.admins.Create(c.Request.Context(), admin.CreateInput{
		Username:  deref(req.Username),
		Password:  deref(req.Password),
		FirstName: deref(req.FirstName),
		LastName:  deref(req.LastName),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, a, "Administrateur créé avec succès")
}

// UpdateAdmin handles PUT /api/admins/:id
func (h *Handler) UpdateAdmin(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req adminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}

	a, err := h.admins.Update(c.Request.Context(), id, admin.UpdateInput(req))
	if err != nil {
		h.fail(c, err)
		return
	}
	done(c, a, "Administrateur mis à jour avec succès")
}

// DeleteAdmin handles DELETE /api/admins/:id
func (h *Handler) DeleteAdmin(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.admins.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	done(c, nil, "Administrateur désactivé avec succès")
}

package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/mailregistry/internal/registry/contact"
	"github.com/songzhibin97/mailregistry/internal/registry/council"
	"github.com/songzhibin97/mailregistry/internal/registry/services"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

type councilRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Position  *string `json:"position"`
	Login     *string `json:"login"`
	Active    *bool   `json:"isActive"`
}

type serviceRequest struct {
	Name     *string            `json:"name"`
	Code     *string            `json:"code"`
	MailType *registry.MailType `json:"mailType"`
	Active   *bool              `json:"isActive"`
}

type contactRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"isActive"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// ListCouncils handles GET /api/councils
func (h *Handler) ListCouncils(c *gin.Context) {
	page, err := h.councils.List(c.Request.Context(), listOptions(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, page)
}

// GetCouncil handles GET /api/councils/:id
func (h *Handler) GetCouncil(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	member, err := h.councils.GetByID(c.Request.Context(), id, queryBool(c, "includeInactive"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, member)
}

// CreateCouncil handles POST /api/councils
func (h *Handler) CreateCouncil(c *gin.Context) {
	var req councilRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}

	member, err := h.councils.Create(c.Request.Context(), council.CreateInput{
		FirstName: deref(req.FirstName),
		LastName:  deref(req.LastName),
		Position:  deref(req.Position),
		Login:     deref(req.Login),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, member, "Élu créé avec succès")
}

// UpdateCouncil handles PUT /api/councils/:id
func (h *Handler) UpdateCouncil(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req councilRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}

	member, err := h.councils.Update(c.Request.Context(), id, council.UpdateInput(req))
	if err != nil {
		h.fail(c, err)
		return
	}
	done(c, member, "Élu mis à jour avec succès")
}

// DeleteCouncil handles DELETE /api/councils/:id
func (h *Handler) DeleteCouncil(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.councils.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	done(c, nil, "Élu désactivé avec succès")
}

// ListServices handles GET /api/services
func (h *Handler) ListServices(c *gin.Context) {
	page, err := h.services.List(c.Request.Context(), registry.ServiceFilter{
		ListOptions: listOptions(c),
		MailType:    registry.MailType(strings.ToUpper(strings.TrimSpace(c.Query("mailType")))),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, page)
}

// GetService handles GET /api/services/:id
func (h *Handler) GetService(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	svc, err := h.services.GetByID(c.Request.Context(), id, queryBool(c, "includeInactive"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, svc)
}

// CreateService handles POST /api/services
func (h *Handler) CreateService(c *gin.Context) {
	var req serviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}

	svc, err := h.services.Create(c.Request.Context(), services.CreateInput{
		Name:     deref(req.Name),
		Code:     deref(req.Code),
		MailType: deref(req.MailType),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, svc, "Service créé avec succès")
}

// UpdateService handles PUT /api/services/:id
func (h *Handler) UpdateService(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req serviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}

	svc, err := h.services.Update(c.Request.Context(), id, services.UpdateInput(req))
	if err != nil {
		h.fail(c, err)
		return
	}
	done(c, svc, "Service mis à jour avec succès")
}

// DeleteService handles DELETE /api/services/:id
func (h *Handler) DeleteService(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.services.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	done(c, nil, "Service désactivé avec succès")
}

// registerContacts mounts the CRUD routes of one contact direction
func (h *Handler) registerContacts(group *gin.RouterGroup, m *contact.Manager) {
	group.GET("", func(c *gin.Context) {
		page, err := m.List(c.Request.Context(), listOptions(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		ok(c, page)
	})

	group.POST("", func(c *gin.Context) {
		var req contactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Corps de requête invalide")
			return
		}
		ct, err := m.Create(c.Request.Context(), deref(req.Name))
		if err != nil {
			h.fail(c, err)
			return
		}
		created(c, ct, "Contact créé avec succès")
	})

	group.GET("/:id", func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			h.fail(c, err)
			return
		}
		ct, err := m.GetByID(c.Request.Context(), id, queryBool(c, "includeInactive"))
		if err != nil {
			h.fail(c, err)
			return
		}
		ok(c, ct)
	})

	group.PUT("/:id", func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			h.fail(c, err)
			return
		}
		var req contactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Corps de requête invalide")
			return
		}
		ct, err := m.Update(c.Request.Context(), id, contact.UpdateInput(req))
		if err != nil {
			h.fail(c, err)
			return
		}
		done(c, ct, "Contact mis à jour avec succès")
	})

	group.DELETE("/:id", func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			h.fail(c, err)
			return
		}
		if err := m.Delete(c.Request.Context(), id); err != nil {
			h.fail(c, err)
			return
		}
		done(c, nil, "Contact désactivé avec succès")
	})
}

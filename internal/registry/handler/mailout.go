package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/mailregistry/internal/registry/mailout"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

type createMailOutRequest struct {
	Date       string  `json:"date"`
	Subject    string  `json:"subject"`
	Reference  string  `json:"reference"`
	ServiceID  int64   `json:"serviceId"`
	UserID     string  `json:"userId"`
	ContactIDs []int64 `json:"contactIds"`
}

type updateMailOutRequest struct {
	Date       *string  `json:"date"`
	Subject    *string  `json:"subject"`
	Reference  *string  `json:"reference"`
	ServiceID  *int64   `json:"serviceId"`
	UserID     *string  `json:"userId"`
	ContactIDs *[]int64 `json:"contactIds"`
}

// ListMailOut handles GET /api/mail-out
func (h *Handler) ListMailOut(c *gin.Context) {
	filter := registry.MailOutFilter{
		UserID: c.Query("userId"),
		Query:  c.Query("query"),
	}

	var err error
	if filter.ServiceID, err = queryInt64(c, "serviceId"); err != nil {
		h.fail(c, err)
		return
	}
	if filter.DateFrom, err = queryDate(c, "dateFrom"); err != nil {
		h.fail(c, err)
		return
	}
	if filter.DateTo, err = queryDate(c, "dateTo"); err != nil {
		h.fail(c, err)
		return
	}

	page, err := h.mailOut.List(c.Request.Context(), filter, pageRequest(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, page)
}

// SearchMailOut handles GET /api/mail-out/search
func (h *Handler) SearchMailOut(c *gin.Context) {
	page, err := h.mailOut.Search(c.Request.Context(), c.Query("query"), pageRequest(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, page)
}

// ListMailOutByUser handles GET /api/mail-out/user/:userId
func (h *Handler) ListMailOutByUser(c *gin.Context) {
	page, err := h.mailOut.ListByUser(c.Request.Context(), c.Param("userId"), pageRequest(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, page)
}

// GetMailOut handles GET /api/mail-out/:id
func (h *Handler) GetMailOut(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	mail, err := h.mailOut.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, mail)
}

// CreateMailOut handles POST /api/mail-out. A user creating a mail without
// naming the sender is the sender.
func (h *Handler) CreateMailOut(c *gin.Context) {
	var req createMailOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}

	var date time.Time
	if req.Date != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			h.fail(c, err)
			return
		}
		date = d
	}

	if caller := h.caller(c); req.UserID == "" && caller.Kind == registry.PrincipalUser {
		req.UserID = caller.ID
	}

	mail, err := h.mailOut.Create(c.Request.Context(), mailout.CreateInput{
		Date:       date,
		Subject:    req.Subject,
		Reference:  req.Reference,
		ServiceID:  req.ServiceID,
		UserID:     req.UserID,
		ContactIDs: req.ContactIDs,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, mail, "Courrier sortant créé avec succès")
}

// UpdateMailOut handles PUT /api/mail-out/:id
func (h *Handler) UpdateMailOut(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var req updateMailOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}
	date, err := optionalDate(req.Date)
	if err != nil {
		h.fail(c, err)
		return
	}

	mail, err := h.mailOut.Update(c.Request.Context(), id, mailout.UpdateInput{
		Date:       date,
		Subject:    req.Subject,
		Reference:  req.Reference,
		ServiceID:  req.ServiceID,
		UserID:     req.UserID,
		ContactIDs: req.ContactIDs,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	done(c, mail, "Courrier sortant mis à jour avec succès")
}

// DeleteMailOut handles DELETE /api/mail-out/:id
func (h *Handler) DeleteMailOut(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.mailOut.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	done(c, nil, "Courrier sortant supprimé avec succès")
}

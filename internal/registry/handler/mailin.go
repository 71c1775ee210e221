package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/mailregistry/internal/registry/mailin"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

type createMailInRequest struct {
	Date                string                        `json:"date"`
	Subject             string                        `json:"subject"`
	NeedsMayor          bool                          `json:"needsMayor"`
	NeedsDgs            bool                          `json:"needsDgs"`
	ServiceDestinations []registry.ServiceDestination `json:"serviceDestinations"`
	ServiceIDs          []int64                       `json:"serviceIds"`
	CouncilIDs          []int64                       `json:"councilIds"`
	ContactIDs          []int64                       `json:"contactIds"`
}

// updateMailInRequest distinguishes an absent list (nil) from an empty one
type updateMailInRequest struct {
	Date                *string                        `json:"date"`
	Subject             *string                        `json:"subject"`
	NeedsMayor          *bool                          `json:"needsMayor"`
	NeedsDgs            *bool                          `json:"needsDgs"`
	ServiceDestinations *[]registry.ServiceDestination `json:"serviceDestinations"`
	ServiceIDs          *[]int64                       `json:"serviceIds"`
	CouncilIDs          *[]int64                       `json:"councilIds"`
	ContactIDs          *[]int64                       `json:"contactIds"`
}

// ListMailIn handles GET /api/mail-in
func (h *Handler) ListMailIn(c *gin.Context) {
	filter, err := mailInFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	page, err := h.mailIn.List(c.Request.Context(), filter, pageRequest(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, page)
}

// SearchMailIn handles GET /api/mail-in/search
func (h *Handler) SearchMailIn(c *gin.Context) {
	page, err := h.mailIn.Search(c.Request.Context(), c.Query("query"), pageRequest(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, page)
}

// Inbox handles GET /api/mail-in/inbox. Users read their own inbox;
// administrators name the user with ?userId=.
func (h *Handler) Inbox(c *gin.Context) {
	caller := h.caller(c)
	userID := caller.ID
	if caller.Kind == registry.PrincipalAdmin {
		userID = c.Query("userId")
	}

	page, err := h.mailIn.ListForUser(c.Request.Context(), userID, queryBool(c, "unreadOnly"), pageRequest(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, page)
}

// GetMailIn handles GET /api/mail-in/:id
func (h *Handler) GetMailIn(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	mail, err := h.mailIn.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, mail)
}

// CreateMailIn handles POST /api/mail-in
func (h *Handler) CreateMailIn(c *gin.Context) {
	var req createMailInRequest
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

	mail, err := h.mailIn.Create(c.Request.Context(), mailin.CreateInput{
		Date:                date,
		Subject:             req.Subject,
		NeedsMayor:          req.NeedsMayor,
		NeedsDgs:            req.NeedsDgs,
		ServiceDestinations: req.ServiceDestinations,
		ServiceIDs:          req.ServiceIDs,
		CouncilIDs:          req.CouncilIDs,
		ContactIDs:          req.ContactIDs,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, mail, "Courrier entrant créé avec succès")
}

// UpdateMailIn handles PUT /api/mail-in/:id
func (h *Handler) UpdateMailIn(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var req updateMailInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Corps de requête invalide")
		return
	}
	date, err := optionalDate(req.Date)
	if err != nil {
		h.fail(c, err)
		return
	}

	mail, err := h.mailIn.Update(c.Request.Context(), id, mailin.UpdateInput{
		Date:                date,
		Subject:             req.Subject,
		NeedsMayor:          req.NeedsMayor,
		NeedsDgs:            req.NeedsDgs,
		ServiceDestinations: req.ServiceDestinations,
		ServiceIDs:          req.ServiceIDs,
		CouncilIDs:          req.CouncilIDs,
		ContactIDs:          req.ContactIDs,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	done(c, mail, "Courrier entrant mis à jour avec succès")
}

// DeleteMailIn handles DELETE /api/mail-in/:id
func (h *Handler) DeleteMailIn(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.mailIn.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	done(c, nil, "Courrier entrant supprimé avec succès")
}

// MarkMailInRead handles POST /api/mail-in/:id/read for the calling user
func (h *Handler) MarkMailInRead(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	caller := h.caller(c)
	if caller.Kind != registry.PrincipalUser {
		h.fail(c, registry.NewValidationError("USER_REQUIRED", "Seul un utilisateur peut marquer un courrier comme lu"))
		return
	}

	if err := h.mailIn.MarkAsRead(c.Request.Context(), id, caller.ID); err != nil {
		h.fail(c, err)
		return
	}
	done(c, nil, "Courrier marqué comme lu")
}

func mailInFilter(c *gin.Context) (registry.MailInFilter, error) {
	filter := registry.MailInFilter{
		NeedsMayor: queryOptionalBool(c, "needsMayor"),
		NeedsDgs:   queryOptionalBool(c, "needsDgs"),
		Query:      c.Query("query"),
		UserID:     c.Query("userId"),
		UnreadOnly: queryBool(c, "unreadOnly"),
	}

	var err error
	if filter.DateFrom, err = queryDate(c, "dateFrom"); err != nil {
		return filter, err
	}
	if filter.DateTo, err = queryDate(c, "dateTo"); err != nil {
		return filter, err
	}
	if filter.ServiceIDs, err = queryIDs(c, "serviceIds"); err != nil {
		return filter, err
	}
	return filter, nil
}

// Package handler exposes the registry managers as a JSON API over gin.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/mailregistry/internal/registry/admin"
	"github.com/songzhibin97/mailregistry/internal/registry/auth"
	"github.com/songzhibin97/mailregistry/internal/registry/cache"
	"github.com/songzhibin97/mailregistry/internal/registry/contact"
	"github.com/songzhibin97/mailregistry/internal/registry/council"
	"github.com/songzhibin97/mailregistry/internal/registry/dashboard"
	"github.com/songzhibin97/mailregistry/internal/registry/mailin"
	"github.com/songzhibin97/mailregistry/internal/registry/mailout"
	"github.com/songzhibin97/mailregistry/internal/registry/metrics"
	"github.com/songzhibin97/mailregistry/internal/registry/middleware"
	"github.com/songzhibin97/mailregistry/internal/registry/ratelimit"
	"github.com/songzhibin97/mailregistry/internal/registry/services"
	"github.com/songzhibin97/mailregistry/internal/registry/user"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// Dependencies groups what the handlers call into. Cache, Metrics and
// LoginLimiter are optional.
type Dependencies struct {
	Repository   registry.Repository
	Cache        cache.Cache
	Metrics      *metrics.Metrics
	JWT          *auth.JWTManager
	LoginLimiter *ratelimit.KeyedLimiter
	MailIn       *mailin.Manager
	MailOut      *mailout.Manager
	Councils     *council.Manager
	Services     *services.Manager
	ContactsIn   *contact.Manager
	ContactsOut  *contact.Manager
	Users        *user.Manager
	Admins       *admin.Manager
	Dashboard    *dashboard.Service
}

// Handler serves the registry HTTP API
type Handler struct {
	repo        registry.Repository
	cache       cache.Cache
	metrics     *metrics.Metrics
	jwt         *auth.JWTManager
	limiter     *ratelimit.KeyedLimiter
	mailIn      *mailin.Manager
	mailOut     *mailout.Manager
	councils    *council.Manager
	services    *services.Manager
	contactsIn  *contact.Manager
	contactsOut *contact.Manager
	users       *user.Manager
	admins      *admin.Manager
	dashboard   *dashboard.Service
	logger      log.Logger
}

// NewHandler creates a new API handler
func NewHandler(deps Dependencies, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.Component("handler")
	}
	return &Handler{
		repo:        deps.Repository,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		jwt:         deps.JWT,
		limiter:     deps.LoginLimiter,
		mailIn:      deps.MailIn,
		mailOut:     deps.MailOut,
		councils:    deps.Councils,
		services:    deps.Services,
		contactsIn:  deps.ContactsIn,
		contactsOut: deps.ContactsOut,
		users:       deps.Users,
		admins:      deps.Admins,
		dashboard:   deps.Dashboard,
		logger:      logger,
	}
}

// RegisterRoutes registers the health probe and every /api route
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)

	api := router.Group("/api")

	var throttle []gin.HandlerFunc
	if h.limiter != nil {
		throttle = append(throttle, ratelimit.ByClientIP(h.limiter))
	}

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", append(throttle, h.Login)...)
		authGroup.POST("/admin/login", append(throttle, h.AdminLogin)...)
		authGroup.GET("/me", middleware.RequireAuth(h.jwt), h.Me)
	}

	protected := api.Group("", middleware.RequireAuth(h.jwt))

	mailIn := protected.Group("/mail-in")
	{
		mailIn.GET("", h.ListMailIn)
		mailIn.POST("", h.CreateMailIn)
		mailIn.GET("/search", h.SearchMailIn)
		mailIn.GET("/inbox", h.Inbox)
		mailIn.GET("/:id", h.GetMailIn)
		mailIn.PUT("/:id", h.UpdateMailIn)
		mailIn.DELETE("/:id", h.DeleteMailIn)
		mailIn.POST("/:id/read", h.MarkMailInRead)
	}

	mailOut := protected.Group("/mail-out")
	{
		mailOut.GET("", h.ListMailOut)
		mailOut.POST("", h.CreateMailOut)
		mailOut.GET("/search", h.SearchMailOut)
		mailOut.GET("/user/:userId", h.ListMailOutByUser)
		mailOut.GET("/:id", h.GetMailOut)
		mailOut.PUT("/:id", h.UpdateMailOut)
		mailOut.DELETE("/:id", h.DeleteMailOut)
	}

	councils := protected.Group("/councils")
	{
		councils.GET("", h.ListCouncils)
		councils.POST("", h.CreateCouncil)
		councils.GET("/:id", h.GetCouncil)
		councils.PUT("/:id", h.UpdateCouncil)
		councils.DELETE("/:id", h.DeleteCouncil)
	}

	svc := protected.Group("/services")
	{
		svc.GET("", h.ListServices)
		svc.POST("", h.CreateService)
		svc.GET("/:id", h.GetService)
		svc.PUT("/:id", h.UpdateService)
		svc.DELETE("/:id", h.DeleteService)
	}

	h.registerContacts(protected.Group("/contacts-in"), h.contactsIn)
	h.registerContacts(protected.Group("/contacts-out"), h.contactsOut)

	admins := protected.Group("", middleware.RequireAdmin())
	{
		admins.GET("/users", h.ListUsers)
		admins.POST("/users", h.CreateUser)
		admins.GET("/users/:id", h.GetUser)
		admins.PUT("/users/:id", h.UpdateUser)
		admins.DELETE("/users/:id", h.DeleteUser)

		admins.GET("/admins", h.ListAdmins)
		admins.POST("/admins", h.CreateAdmin)
		admins.GET("/admins/:id", h.GetAdmin)
		admins.PUT("/admins/:id", h.UpdateAdmin)
		admins.DELETE("/admins/:id", h.DeleteAdmin)
	}

	dash := protected.Group("/dashboard")
	{
		dash.GET("", h.Dashboard)
		dash.GET("/history", h.DashboardHistory)
	}
}

func (h *Handler) caller(c *gin.Context) registry.Caller {
	caller, _ := registry.CallerFrom(c.Request.Context())
	return caller
}

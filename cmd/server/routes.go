package main

import (
	"github.com/gin-gonic/gin"
	"github.com/opsboard/uatreview/internal/config"
	"github.com/opsboard/uatreview/internal/middleware"
	"github.com/opsboard/uatreview/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "uatreview"})
	})

	// Public token portals share one rate limiter.
	portalLimiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	api := r.Group("/api/uat")
	{
		// Internal management surface, fronted by the business app.
		api.POST("/sessions", svc.sessionHandler.Create)
		api.GET("/sessions", svc.sessionHandler.List)
		api.GET("/sessions/:id", svc.sessionHandler.GetByID)
		api.DELETE("/sessions/:id", svc.sessionHandler.Delete)
		api.GET("/audit-logs", svc.auditHandler.List)

		// PM portal: invite token or collaborator token.
		pm := api.Group("/pm/:token",
			portalLimiter.Middleware(),
			middleware.PortalAccess(svc.access, "token"),
			middleware.RequirePM())
		{
			pm.GET("", svc.pmHandler.Overview)
			pm.PATCH("/session", svc.pmHandler.UpdateSession)
			pm.POST("/session/activate", svc.pmHandler.ActivateSession)
			pm.POST("/session/complete", svc.pmHandler.CompleteSession)

			pm.GET("/guests", svc.pmHandler.ListGuests)
			pm.POST("/guests", svc.pmHandler.InviteGuest)
			pm.POST("/collaborators", svc.pmHandler.InviteCollaborator)

			pm.POST("/items", svc.pmHandler.CreateItem)
			pm.PUT("/item-order", svc.pmHandler.ReorderItems)
			pm.PATCH("/items/:id", svc.pmHandler.UpdateItem)
			pm.DELETE("/items/:id", svc.pmHandler.DeleteItem)
			pm.POST("/items/:id/duplicate", svc.pmHandler.DuplicateItem)
			pm.POST("/items/:id/resolve", svc.pmHandler.ResolveItem)

			pm.POST("/items/:id/steps", svc.pmHandler.CreateStep)
			pm.PUT("/items/:id/step-order", svc.pmHandler.ReorderSteps)
			pm.PATCH("/items/:id/steps/:stepId", svc.pmHandler.UpdateStep)
			pm.DELETE("/items/:id/steps/:stepId", svc.pmHandler.DeleteStep)

			pm.GET("/items/:id/runs", svc.pmHandler.RunHistory)
			pm.GET("/items/:id/responses", svc.pmHandler.ListResponses)
			pm.GET("/items/:id/comments", svc.pmHandler.ListComments)
			pm.POST("/items/:id/comments", svc.pmHandler.CreateComment)
		}

		// Guest reviewer portal.
		guest := api.Group("/r/:accessToken",
			portalLimiter.Middleware(),
			middleware.PortalAccess(svc.access, "accessToken"),
			middleware.RequireGuest())
		{
			guest.GET("", svc.guestHandler.View)
			guest.POST("/items/:id/steps/:stepId/result", svc.guestHandler.SubmitStepResult)
			guest.POST("/items/:id/response", svc.guestHandler.SubmitResponse)
			guest.GET("/items/:id/run", svc.guestHandler.ActiveRun)
			guest.GET("/items/:id/runs", svc.guestHandler.RunHistory)
			guest.GET("/items/:id/comments", svc.guestHandler.ListComments)
			guest.POST("/items/:id/comments", svc.guestHandler.CreateComment)
		}
	}
}

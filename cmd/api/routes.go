package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campuslife/campus-events-api/api/swagger"
	"github.com/campuslife/campus-events-api/internal/handler"
	"github.com/campuslife/campus-events-api/internal/middleware"
	"github.com/campuslife/campus-events-api/internal/models"
	"github.com/campuslife/campus-events-api/internal/service"
	"github.com/campuslife/campus-events-api/pkg/config"
	"github.com/campuslife/campus-events-api/pkg/logger"
	corsmiddleware "github.com/campuslife/campus-events-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuslife/campus-events-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth          *service.AuthService
	metrics       *service.MetricsService
	authHandler   *handler.AuthHandler
	userHandler   *handler.UserHandler
	eventHandler  *handler.EventHandler
	regHandler    *handler.RegistrationHandler
	fbHandler     *handler.FeedbackHandler
	notifHandler  *handler.NotificationHandler
	uploadHandler *handler.UploadHandler
	metricHandler *handler.MetricsHandler
}

func buildRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.metricHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", deps.metricHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/uploads/:token", deps.uploadHandler.Download)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", deps.authHandler.Register)
		auth.POST("/login", deps.authHandler.Login)
		auth.POST("/refresh", deps.authHandler.Refresh)
	}

	browse := api.Group("")
	browse.Use(middleware.OptionalJWT(deps.auth))
	{
		browse.GET("/events", deps.eventHandler.List)
		browse.GET("/events/:id", deps.eventHandler.Get)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.auth))
	{
		authed.POST("/auth/logout", deps.authHandler.Logout)
		authed.POST("/auth/change-password", deps.authHandler.ChangePassword)
		authed.GET("/auth/me", deps.authHandler.Me)

		authed.GET("/users/:id", deps.userHandler.Get)
		authed.PUT("/users/me", deps.userHandler.UpdateProfile)
		authed.PUT("/users/:id", deps.userHandler.UpdateProfile)

		authed.POST("/events", deps.eventHandler.Create)
		authed.PUT("/events/:id", deps.eventHandler.Update)
		authed.POST("/events/:id/poster", deps.eventHandler.UploadPoster)

		authed.POST("/events/auto-complete", deps.eventHandler.Transition)
		authed.POST("/events/:id/register", deps.regHandler.Register)
		authed.POST("/events/:id/check-in", deps.regHandler.CheckIn)
		authed.GET("/events/:id/attendees", deps.regHandler.ListAttendees)
		authed.GET("/events/:id/attendees/export", deps.regHandler.ExportAttendees)
		authed.GET("/registrations", deps.regHandler.ListMine)

		authed.GET("/feedback/pending", deps.fbHandler.Pending)
		authed.POST("/events/:id/feedback", deps.fbHandler.Submit)
		authed.POST("/events/:id/feedback/shown", deps.fbHandler.MarkShown)
		authed.GET("/events/:id/feedback", deps.fbHandler.ListByEvent)
		authed.GET("/events/:id/feedback/summary", deps.fbHandler.Summary)

		authed.GET("/notifications", deps.notifHandler.List)
		authed.PUT("/notifications/:id/read", deps.notifHandler.MarkRead)
		authed.GET("/notifications/unread-count", deps.notifHandler.UnreadCount)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(deps.auth), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", deps.userHandler.List)
		admin.PUT("/users/:id/role", deps.userHandler.UpdateRole)
		admin.DELETE("/users/:id", deps.userHandler.Deactivate)
		admin.GET("/metrics", deps.metricHandler.Snapshot)
	}

	return r
}

package api

import (
	"github.com/feedloop/paygate/internal/handlers"
	"github.com/feedloop/paygate/internal/middleware"
	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LinkScope is the admin token scope required to mint portal links.
const LinkScope = "links"

// Routes bundles what SetupRoutes mounts.
type Routes struct {
	Gateway      *handlers.GatewayHandler
	Webhook      gin.HandlerFunc
	Links        *handlers.LinkHandler
	Tokens       *handlers.TokenHandler
	Status       *handlers.StatusHandler
	TokenService *services.TokenService
	// RateLimiter is optional; public routes are unlimited without it.
	RateLimiter *middleware.RateLimiter
	AccessLog   *logrus.Logger
}

// SetupRoutes configures all API routes with their middleware
func SetupRoutes(router *gin.Engine, r Routes) {
	accessLog := r.AccessLog
	if accessLog == nil {
		accessLog = logrus.New()
	}

	// Global middleware
	router.Use(middleware.Logger(accessLog))
	router.Use(middleware.ErrorHandler())

	router.GET("/status", r.Status.Status)
	router.GET("/health", handlers.Health)

	// Public, signature-authenticated routes
	public := router.Group("/")
	if r.RateLimiter != nil {
		public.Use(r.RateLimiter.RateLimit())
	}
	{
		public.POST("/webhook", r.Webhook)
		public.GET(services.GatewayPath, r.Gateway.Handle)
		public.POST(services.GatewayPath, r.Gateway.Handle)
	}

	// Admin routes, limited per token
	admin := router.Group("/")
	{
		links := admin.Group("/links")
		links.Use(middleware.TokenAuth(r.TokenService, models.AccessLevelWrite, LinkScope))
		if r.RateLimiter != nil {
			links.Use(r.RateLimiter.RateLimit())
		}
		links.POST("", r.Links.CreateLink)

		tokens := admin.Group("/tokens")
		tokens.Use(middleware.RequireMasterToken(r.TokenService))
		tokens.POST("", r.Tokens.CreateToken)
	}
}

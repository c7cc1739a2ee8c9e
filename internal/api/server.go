package api

import (
	"github.com/feedloop/paygate/internal/actions"
	"github.com/feedloop/paygate/internal/config"
	"github.com/feedloop/paygate/internal/handlers"
	"github.com/feedloop/paygate/internal/middleware"
	"github.com/feedloop/paygate/internal/repository"
	"github.com/feedloop/paygate/internal/services"
	"github.com/feedloop/paygate/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the application supplies.
type Dependencies struct {
	Logger    *zap.Logger
	AccessLog *logrus.Logger
	Entities  repository.EntityRepository
	Purchases repository.PurchaseCallback
	// Redis enables rate limiting when non-nil.
	Redis *redis.Client
	// OnHandlerError observes failed webhook handlers.
	OnHandlerError webhook.ErrorCallback
}

// Server is the assembled gateway.
type Server struct {
	Engine   *gin.Engine
	Listener *webhook.Listener
	Links    *services.LinkBuilder
	Tokens   *services.ActionTokenService
	Redirect *services.RedirectVerifier
}

// NewServer wires services, actions and routes from cfg. Register webhook
// handlers on the returned Listener before serving.
func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	signer := services.NewHMACService(cfg.Gateway.SecretKey)
	actionTokens := services.NewActionTokenService(signer, cfg.Gateway.ProductID,
		services.WithDefaultExpiry(cfg.Gateway.TokenExpiryMinutes))
	redirect, err := services.NewRedirectVerifier(signer, cfg.Gateway.ProxyURL)
	if err != nil {
		return nil, err
	}
	auth := services.NewWebhookAuthenticator(signer)

	listenerOpts := []webhook.Option{webhook.WithDispatchTimeout(cfg.Gateway.DispatchTimeout)}
	if deps.OnHandlerError != nil {
		listenerOpts = append(listenerOpts, webhook.WithErrorCallback(deps.OnHandlerError))
	}
	listener := webhook.NewListener(auth, logger.Named("webhook"), listenerOpts...)

	purchase, err := actions.NewPurchaseRedirectAction(redirect, deps.Purchases, cfg.Gateway.AfterPurchaseURL)
	if err != nil {
		return nil, err
	}
	router := actions.NewRouter(logger.Named("gateway"),
		actions.NewWebhookAction(auth, listener),
		purchase,
	)
	if deps.Entities != nil {
		for _, a := range actions.PortalActions(actionTokens, deps.Entities) {
			router.Register(a)
		}
	}
	router.MaxBodyBytes = cfg.Gateway.MaxBodyBytes

	srv := &Server{
		Listener: listener,
		Tokens:   actionTokens,
		Redirect: redirect,
	}
	publicURL := cfg.Gateway.PublicURL
	if publicURL == "" {
		publicURL = "http://localhost"
	}
	srv.Links, err = services.NewLinkBuilder(actionTokens, publicURL)
	if err != nil {
		return nil, err
	}

	var limiter *middleware.RateLimiter
	if deps.Redis != nil {
		limiter = middleware.NewRateLimiter(deps.Redis,
			middleware.WithBucketSize(cfg.RateLimit.BucketSize),
			middleware.WithRefillRate(cfg.RateLimit.RefillRate),
			middleware.WithWindow(cfg.RateLimit.WindowSeconds))
	}

	adminTokens := services.NewTokenService(cfg.Auth.MasterToken, cfg.Auth.JWTSecret)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDMiddleware(logger))
	SetupRoutes(engine, Routes{
		Gateway:      handlers.NewGatewayHandler(router, cfg.Gateway.MaxBodyBytes),
		Webhook:      listener.Handler(cfg.Gateway.MaxBodyBytes),
		Links:        handlers.NewLinkHandler(srv.Links, cfg.Gateway.TokenExpiryMinutes),
		Tokens:       handlers.NewTokenHandler(adminTokens),
		Status:       handlers.NewStatusHandler(cfg.Gateway.ProductID, cfg.Gateway.TokenExpiryMinutes, listener, limiter != nil),
		TokenService: adminTokens,
		RateLimiter:  limiter,
		AccessLog:    deps.AccessLog,
	})
	srv.Engine = engine
	return srv, nil
}

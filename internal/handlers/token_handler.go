package handlers

import (
	"net/http"
	"time"

	"github.com/feedloop/paygate/internal/actions"
	"github.com/feedloop/paygate/internal/middleware"
	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TokenHandler struct {
	tokenService *services.TokenService
}

func NewTokenHandler(tokenService *services.TokenService) *TokenHandler {
	return &TokenHandler{
		tokenService: tokenService,
	}
}

// CreateToken issues an admin JWT. The route is guarded by the master token.
func (h *TokenHandler) CreateToken(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.Error(models.NewBadRequest("unable to read request body"))
		return
	}

	var req models.CreateTokenRequest
	if err := actions.BindJSON(body, &req); err != nil {
		c.Error(err)
		return
	}
	if req.Type != models.TokenTypeJWT {
		c.Error(models.NewBadRequest("only JWT tokens are supported"))
		return
	}
	if !req.ExpiresAt.After(time.Now()) {
		c.Error(models.NewValidationFailed("validation failed", []models.Issue{{Field: "expires_at", Message: "must be in the future"}}))
		return
	}

	tokenString, err := h.tokenService.CreateJWTToken(&req)
	if err != nil {
		c.Error(err)
		return
	}

	middleware.LoggerFrom(c).Info("Admin token issued",
		zap.String("sub", req.Sub),
		zap.String("access", string(req.Access)))
	c.JSON(http.StatusOK, models.CreateTokenResponse{
		Token:     tokenString,
		Type:      req.Type,
		Sub:       req.Sub,
		Access:    req.Access,
		Scope:     req.Scope,
		ExpiresAt: req.ExpiresAt,
	})
}

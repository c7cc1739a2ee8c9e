package middleware

import (
	"strings"

	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	TokenIDKey     = "token_id"
	TokenClaimsKey = "token_claims"
	masterTokenID  = "master"
)

func abortWith(c *gin.Context, err *models.APIError) {
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}

func bearerToken(c *gin.Context) (string, *models.APIError) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", models.NewUnauthorized("Authorization header is required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", models.NewUnauthorized("Invalid authorization header format")
	}
	if parts[1] == "" {
		return "", models.NewUnauthorized("Token is required")
	}
	return parts[1], nil
}

// TokenAuth admits the master token or an admin JWT carrying at least the
// required access level and every listed scope. The token subject is stored
// under TokenIDKey so rate limiting is per caller.
func TokenAuth(tokens *services.TokenService, required models.AccessLevel, scope ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := LoggerFrom(c)

		token, apiErr := bearerToken(c)
		if apiErr != nil {
			logger.Info("Admin request rejected", zap.String("reason", apiErr.Message))
			abortWith(c, apiErr)
			return
		}

		if tokens.ValidateMasterToken(token) {
			c.Set(TokenIDKey, masterTokenID)
			c.Next()
			return
		}

		claims, err := tokens.ValidateJWTToken(token)
		if err != nil {
			logger.Info("Invalid admin token", zap.Error(err))
			abortWith(c, models.NewUnauthorized("Invalid token"))
			return
		}
		if !tokens.ValidateAccess(claims, required) || !tokens.ValidateScope(claims, scope) {
			logger.Info("Insufficient admin token permissions",
				zap.String("sub", claims.Sub),
				zap.String("access", string(claims.Access)))
			abortWith(c, models.NewForbidden("Insufficient permissions"))
			return
		}

		c.Set(TokenIDKey, claims.Sub)
		c.Set(TokenClaimsKey, claims)
		c.Next()
	}
}

// RequireMasterToken is a middleware that requires the master token
func RequireMasterToken(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, apiErr := bearerToken(c)
		if apiErr != nil {
			abortWith(c, apiErr)
			return
		}
		if !tokens.ValidateMasterToken(token) {
			abortWith(c, models.NewForbidden("Master token required"))
			return
		}
		c.Set(TokenIDKey, masterTokenID)
		c.Next()
	}
}

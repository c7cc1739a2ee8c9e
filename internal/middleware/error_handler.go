package middleware

import (
	"github.com/feedloop/paygate/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached to the context. Errors that
// carry an *models.APIError keep their status and message; anything else is
// logged and reported as a generic 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		apiErr := models.AsAPIError(err)
		if apiErr.StatusCode >= 500 {
			LoggerFrom(c).Error("Request failed", zap.Error(err))
		}
		c.JSON(apiErr.StatusCode, apiErr.ToResponse())
	}
}

// LoggerFrom returns the request-scoped logger, or a no-op logger.
func LoggerFrom(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(LoggerKey); ok {
		if logger, ok := v.(*zap.Logger); ok {
			return logger
		}
	}
	return zap.NewNop()
}

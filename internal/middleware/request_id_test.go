package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware(zap.NewNop()))

	var seen string
	var hasLogger bool
	router.GET("/test", func(c *gin.Context) {
		seen = c.GetString(RequestIDKey)
		_, hasLogger = c.Get(LoggerKey)
		c.Status(http.StatusOK)
	})

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)

		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
		assert.True(t, hasLogger)
	})

	t.Run("propagated", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "upstream-1")
		router.ServeHTTP(w, req)

		assert.Equal(t, "upstream-1", seen)
		assert.Equal(t, "upstream-1", w.Header().Get("X-Request-ID"))
	})
}

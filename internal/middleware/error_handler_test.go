package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feedloop/paygate/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "Bad Request",
			err:             models.NewBadRequest("invalid input"),
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "invalid input",
		},
		{
			name:            "Unauthorized",
			err:             models.NewUnauthorized("unauthorized"),
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "unauthorized",
		},
		{
			name:            "Wrapped API Error",
			err:             fmt.Errorf("update billing: %w", models.NewNotFound("user not found")),
			expectedStatus:  http.StatusNotFound,
			expectedMessage: "user not found",
		},
		{
			name:            "Entity Not Found",
			err:             fmt.Errorf("payment 5: %w", models.ErrEntityNotFound),
			expectedStatus:  http.StatusNotFound,
			expectedMessage: "entity not found",
		},
		{
			name:            "Generic Error",
			err:             assert.AnError,
			expectedStatus:  http.StatusInternalServerError,
			expectedMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(ErrorHandler())
			router.GET("/test", func(c *gin.Context) {
				c.Error(tt.err)
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/test", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedMessage, resp.Error)
			assert.Equal(t, tt.expectedStatus, resp.Status)
			assert.False(t, resp.Success)
		})
	}
}

func TestErrorHandler_ValidationDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/test", func(c *gin.Context) {
		c.Error(models.NewValidationFailed("validation failed", []models.Issue{{Field: "coupon", Message: "is required"}}))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"status":400,"success":false,"error":"validation failed","details":[{"field":"coupon","message":"is required"}]}`, w.Body.String())
}

func TestErrorHandler_ResponseAlreadyWritten(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/test", func(c *gin.Context) {
		c.Error(assert.AnError)
		c.String(http.StatusAccepted, "done")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "done", w.Body.String())
}

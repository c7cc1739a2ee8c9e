package middleware

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxLoggedBody = 1024

// redactedParams are query parameters that carry credentials.
var redactedParams = []string{"token", "signature"}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	if w.body.Len() < maxLoggedBody {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// redactQuery masks credential-bearing parameters and leaves the rest as is.
func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparseable]"
	}
	for _, key := range redactedParams {
		if _, ok := q[key]; ok {
			q.Set(key, "REDACTED")
		}
	}
	return q.Encode()
}

// Logger returns a middleware that logs requests using logrus. Request
// bodies are never logged since they carry billing details and signed
// payloads; small error responses are.
func Logger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start timer
		start := time.Now()

		// Create a custom response writer to capture the response
		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		// Process request
		c.Next()

		// Prepare log fields
		fields := logrus.Fields{
			"status":     strconv.Itoa(c.Writer.Status()),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
			"duration":   time.Since(start).String(),
			"user_agent": c.Request.UserAgent(),
		}
		if query := redactQuery(c.Request.URL.RawQuery); query != "" {
			fields["query"] = query
		}

		// Add request ID if available
		if requestID := c.GetString(RequestIDKey); requestID != "" {
			fields["request_id"] = requestID
		}

		statusCode := c.Writer.Status()
		contentType := c.Writer.Header().Get("Content-Type")
		if statusCode >= 400 && w.body.Len() > 0 && w.body.Len() < maxLoggedBody && strings.HasPrefix(contentType, "application/json") {
			fields["response_body"] = w.body.String()
		}

		// Add error if present
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		// Log with appropriate level based on status code
		switch {
		case statusCode >= 500:
			log.WithFields(fields).Error("Server error")
		case statusCode >= 400:
			log.WithFields(fields).Warn("Client error")
		case statusCode >= 300:
			log.WithFields(fields).Info("Redirection")
		default:
			log.WithFields(fields).Info("Success")
		}
	}
}

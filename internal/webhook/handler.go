package webhook

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler adapts the listener to a gin route. The body is read once and
// verified as raw bytes before anything parses it.
func (l *Listener) Handler(maxBodyBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := c.Request.Body
		if maxBodyBytes > 0 {
			body = http.MaxBytesReader(c.Writer, body, maxBodyBytes)
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			res := Result{Status: http.StatusBadRequest, Error: "unable to read request body"}
			c.JSON(res.Status, res.ToResponse())
			return
		}

		res := l.Process(c.Request.Context(), raw, c.Request.Header)
		c.JSON(res.Status, res.ToResponse())
	}
}

package handlers

import (
	"github.com/feedloop/paygate/internal/actions"
	"github.com/feedloop/paygate/internal/models"
	"github.com/gin-gonic/gin"
)

// GatewayHandler mounts the action router on a gin route.
type GatewayHandler struct {
	router       *actions.Router
	maxBodyBytes int64
}

func NewGatewayHandler(router *actions.Router, maxBodyBytes int64) *GatewayHandler {
	return &GatewayHandler{router: router, maxBodyBytes: maxBodyBytes}
}

func (h *GatewayHandler) Handle(c *gin.Context) {
	req, err := actions.NewRequest(c.Writer, c.Request, h.maxBodyBytes)
	if err != nil {
		apiErr := models.NewBadRequest("unable to read request body")
		c.AbortWithStatusJSON(apiErr.StatusCode, apiErr.ToResponse())
		return
	}
	resp := h.router.Route(c.Request.Context(), req)
	resp.Write(c.Writer)
}

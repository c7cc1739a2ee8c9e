package handlers

import (
	"net/http"

	"github.com/feedloop/paygate/internal/actions"
	"github.com/feedloop/paygate/internal/middleware"
	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LinkHandler lets the application backend mint signed portal links, e.g.
// to embed in a billing email.
type LinkHandler struct {
	links         *services.LinkBuilder
	defaultExpiry int
}

func NewLinkHandler(links *services.LinkBuilder, defaultExpiry int) *LinkHandler {
	return &LinkHandler{links: links, defaultExpiry: defaultExpiry}
}

func (h *LinkHandler) CreateLink(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.Error(models.NewBadRequest("unable to read request body"))
		return
	}

	var req models.CreateLinkRequest
	if err := actions.BindJSON(body, &req); err != nil {
		c.Error(err)
		return
	}

	action, ok := models.LookupPortalAction(req.Action)
	if !ok {
		c.Error(models.NewValidationFailed("validation failed", []models.Issue{{Field: "action", Message: "unknown portal action"}}))
		return
	}
	if action.ResourceParam != models.ParamUserID && req.ResourceID == "" {
		c.Error(models.NewValidationFailed("validation failed", []models.Issue{{Field: "resource_id", Message: "is required"}}))
		return
	}

	expiry := h.defaultExpiry
	if req.ExpiryMinutes != nil {
		expiry = *req.ExpiryMinutes
	}

	link, err := h.links.ActionURL(req.Action, req.UserID, req.ResourceID, expiry)
	if err != nil {
		c.Error(err)
		return
	}

	middleware.LoggerFrom(c).Info("Portal link issued",
		zap.String("action", string(req.Action)),
		zap.String("user_id", req.UserID),
		zap.String("issued_by", c.GetString(middleware.TokenIDKey)))
	c.JSON(http.StatusCreated, models.CreateLinkResponse{
		URL:       link,
		Action:    req.Action,
		UserID:    req.UserID,
		ExpiresIn: expiry,
	})
}

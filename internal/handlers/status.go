package handlers

import (
	"net/http"
	"time"

	"github.com/feedloop/paygate/internal/middleware"
	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the status endpoint and the CLI.
const Version = "1.0.0"

var startTime = time.Now()

// getStartTime returns the start time of the application
func getStartTime() time.Time {
	return startTime
}

// EventCounter reports how many handlers listen for an event type.
type EventCounter interface {
	Handlers(t models.EventType) int
}

// StatusResponse represents the status endpoint response
type StatusResponse struct {
	Status        string         `json:"status"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Version       string         `json:"version"`
	ProductID     string         `json:"product_id"`
	Signing       SigningInfo    `json:"signing"`
	Tokens        TokenInfo      `json:"tokens"`
	Handlers      map[string]int `json:"handlers"`
	RateLimited   bool           `json:"rate_limited"`
}

// SigningInfo describes how requests must be signed
type SigningInfo struct {
	Algorithm       string `json:"algorithm"`
	SignatureHeader string `json:"signature_header"`
}

// TokenInfo describes portal action tokens
type TokenInfo struct {
	DefaultExpiryMinutes int `json:"default_expiry_minutes"`
}

type StatusHandler struct {
	productID   string
	expiry      int
	events      EventCounter
	rateLimited bool
}

func NewStatusHandler(productID string, expiryMinutes int, events EventCounter, rateLimited bool) *StatusHandler {
	return &StatusHandler{productID: productID, expiry: expiryMinutes, events: events, rateLimited: rateLimited}
}

// Status reports configuration that integrators need, never secrets.
func (h *StatusHandler) Status(c *gin.Context) {
	handlers := make(map[string]int)
	if h.events != nil {
		for _, t := range models.KnownEventTypes() {
			if n := h.events.Handlers(t); n > 0 {
				handlers[string(t)] = n
			}
		}
	}

	response := StatusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(getStartTime()).Seconds()),
		Version:       Version,
		ProductID:     h.productID,
		Signing: SigningInfo{
			Algorithm:       "HMAC-SHA256",
			SignatureHeader: services.SignatureHeader,
		},
		Tokens:      TokenInfo{DefaultExpiryMinutes: h.expiry},
		Handlers:    handlers,
		RateLimited: h.rateLimited,
	}
	middleware.LoggerFrom(c).Debug("Status endpoint checked", zap.Int64("uptime_seconds", response.UptimeSeconds))
	c.JSON(http.StatusOK, response)
}

// Health is a liveness probe.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

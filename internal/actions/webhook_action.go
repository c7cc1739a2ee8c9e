package actions

import (
	"context"
	"net/http"

	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/services"
	"github.com/feedloop/paygate/internal/webhook"
)

// WebhookAction accepts signed platform events posted to the gateway
// endpoint and hands them to the listener.
type WebhookAction struct {
	auth     *services.WebhookAuthenticator
	listener *webhook.Listener
}

func NewWebhookAction(auth *services.WebhookAuthenticator, listener *webhook.Listener) *WebhookAction {
	return &WebhookAction{auth: auth, listener: listener}
}

func (a *WebhookAction) CanHandle(req *Request) bool {
	return req.Method == http.MethodPost &&
		services.SignatureFromHeader(req.Header) != "" &&
		req.Param(models.ParamAction) == ""
}

func (a *WebhookAction) VerifyAuthentication(req *Request) bool {
	return a.auth.VerifySignature(req.Body, services.SignatureFromHeader(req.Header))
}

func (a *WebhookAction) ProcessAction(ctx context.Context, req *Request) (*Response, error) {
	res := a.listener.Process(ctx, req.Body, req.Header)
	return JSON(res.Status, res.ToResponse()), nil
}

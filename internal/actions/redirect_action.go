package actions

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/repository"
	"github.com/feedloop/paygate/internal/services"
)

const purchaseActionName = "purchase_completed"

// PurchaseRedirectAction completes a checkout when the platform redirects
// the buyer back with a signed query string.
type PurchaseRedirectAction struct {
	verifier      *services.RedirectVerifier
	callback      repository.PurchaseCallback
	afterPurchase *url.URL
}

// NewPurchaseRedirectAction builds the action. afterPurchaseURL may be empty,
// in which case the verified purchase is returned as JSON.
func NewPurchaseRedirectAction(verifier *services.RedirectVerifier, callback repository.PurchaseCallback, afterPurchaseURL string) (*PurchaseRedirectAction, error) {
	a := &PurchaseRedirectAction{verifier: verifier, callback: callback}
	if afterPurchaseURL != "" {
		u, err := url.Parse(afterPurchaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid after purchase url: %w", err)
		}
		a.afterPurchase = u
	}
	return a, nil
}

func (a *PurchaseRedirectAction) CanHandle(req *Request) bool {
	q := req.Query()
	return req.Method == http.MethodGet && q.Has("signature") && q.Has("user_id")
}

// VerifyAuthentication always passes. A bad redirect signature is reported
// from ProcessAction as a bad request.
func (a *PurchaseRedirectAction) VerifyAuthentication(req *Request) bool {
	return true
}

func (a *PurchaseRedirectAction) ProcessAction(ctx context.Context, req *Request) (*Response, error) {
	info := a.verifier.Verify(req.URL.String())
	if info == nil {
		return nil, models.NewBadRequest("invalid purchase redirect")
	}

	if a.callback != nil {
		if err := a.callback.OnPurchase(ctx, info); err != nil {
			return nil, fmt.Errorf("purchase callback: %w", err)
		}
	}

	if a.afterPurchase == nil {
		return JSON(http.StatusOK, models.ActionResult{Success: true, Action: purchaseActionName, Data: info}), nil
	}

	target := *a.afterPurchase
	q := target.Query()
	for k, vs := range info.ToQuery() {
		q[k] = vs
	}
	target.RawQuery = q.Encode()
	return Redirect(target.String()), nil
}

package actions

import (
	"context"
	"net/http"

	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/repository"
	"github.com/feedloop/paygate/internal/services"
)

// portalAction carries what every customer portal action shares: it is
// addressed by the action parameter and authenticated by a token scoped to
// the action, the resource and the user.
type portalAction struct {
	desc   models.PortalAction
	tokens *services.ActionTokenService
	repo   repository.EntityRepository
}

func newPortalAction(name models.ActionName, tokens *services.ActionTokenService, repo repository.EntityRepository) portalAction {
	desc, _ := models.LookupPortalAction(name)
	return portalAction{desc: desc, tokens: tokens, repo: repo}
}

func (p portalAction) CanHandle(req *Request) bool {
	return req.Method == p.desc.Method && req.Param(models.ParamAction) == string(p.desc.Name)
}

func (p portalAction) VerifyAuthentication(req *Request) bool {
	userID := req.Param(models.ParamUserID)
	resourceID := req.Param(p.desc.ResourceParam)
	if userID == "" || resourceID == "" {
		return false
	}
	return p.tokens.VerifyActionToken(req.Param(models.ParamToken), p.desc.Scope(resourceID), userID)
}

func (p portalAction) ids(req *Request) (userID, resourceID string) {
	return req.Param(models.ParamUserID), req.Param(p.desc.ResourceParam)
}

func (p portalAction) result(data interface{}) *Response {
	return JSON(http.StatusOK, models.ActionResult{Success: true, Action: p.desc.Name, Data: data})
}

// InvoiceAction streams an invoice PDF.
type InvoiceAction struct{ portalAction }

func NewInvoiceAction(tokens *services.ActionTokenService, repo repository.EntityRepository) *InvoiceAction {
	return &InvoiceAction{newPortalAction(models.ActionGetInvoice, tokens, repo)}
}

func (a *InvoiceAction) ProcessAction(ctx context.Context, req *Request) (*Response, error) {
	userID, invoiceID := a.ids(req)
	invoice, err := a.repo.GetInvoicePDF(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	return Binary("application/pdf", invoice.Filename, invoice.PDF), nil
}

// BillingAction replaces the customer's billing profile.
type BillingAction struct{ portalAction }

func NewBillingAction(tokens *services.ActionTokenService, repo repository.EntityRepository) *BillingAction {
	return &BillingAction{newPortalAction(models.ActionUpdateBilling, tokens, repo)}
}

func (a *BillingAction) ProcessAction(ctx context.Context, req *Request) (*Response, error) {
	var billing models.Billing
	if err := BindJSON(req.Body, &billing); err != nil {
		return nil, err
	}
	userID, _ := a.ids(req)
	updated, err := a.repo.UpdateBilling(ctx, userID, &billing)
	if err != nil {
		return nil, err
	}
	return a.result(updated), nil
}

// CancelAction cancels a subscription's renewals.
type CancelAction struct{ portalAction }

func NewCancelAction(tokens *services.ActionTokenService, repo repository.EntityRepository) *CancelAction {
	return &CancelAction{newPortalAction(models.ActionCancelSubscription, tokens, repo)}
}

func (a *CancelAction) ProcessAction(ctx context.Context, req *Request) (*Response, error) {
	var body models.CancelSubscriptionRequest
	if len(req.Body) > 0 {
		if err := BindJSON(req.Body, &body); err != nil {
			return nil, err
		}
	}
	userID, subscriptionID := a.ids(req)
	sub, err := a.repo.CancelSubscription(ctx, userID, subscriptionID, &body)
	if err != nil {
		return nil, err
	}
	return a.result(sub), nil
}

// CouponAction applies a renewal discount coupon to a subscription.
type CouponAction struct{ portalAction }

func NewCouponAction(tokens *services.ActionTokenService, repo repository.EntityRepository) *CouponAction {
	return &CouponAction{newPortalAction(models.ActionApplyCoupon, tokens, repo)}
}

func (a *CouponAction) ProcessAction(ctx context.Context, req *Request) (*Response, error) {
	var body models.ApplyCouponRequest
	if err := BindJSON(req.Body, &body); err != nil {
		return nil, err
	}
	userID, subscriptionID := a.ids(req)
	sub, err := a.repo.ApplyRenewalCoupon(ctx, userID, subscriptionID, body.Coupon)
	if err != nil {
		return nil, err
	}
	return a.result(sub), nil
}

// PortalActions returns every customer portal action in routing order.
func PortalActions(tokens *services.ActionTokenService, repo repository.EntityRepository) []Action {
	return []Action{
		NewInvoiceAction(tokens, repo),
		NewBillingAction(tokens, repo),
		NewCancelAction(tokens, repo),
		NewCouponAction(tokens, repo),
	}
}

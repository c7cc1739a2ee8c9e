package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/feedloop/paygate/internal/models"
)

// GatewayPath is where the action router is mounted.
const GatewayPath = "/gateway"

// LinkBuilder renders authenticated portal URLs. Each link embeds a token
// scoped to one action, one resource and one user.
type LinkBuilder struct {
	tokens  *ActionTokenService
	baseURL string
}

func NewLinkBuilder(tokens *ActionTokenService, publicURL string) (*LinkBuilder, error) {
	u, err := url.Parse(publicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid public url %q", publicURL)
	}
	return &LinkBuilder{
		tokens:  tokens,
		baseURL: strings.TrimRight(publicURL, "/") + GatewayPath,
	}, nil
}

// ActionURL mints a link for a portal action. expiryMinutes < 0 selects the
// service default.
func (b *LinkBuilder) ActionURL(name models.ActionName, userID, resourceID string, expiryMinutes int) (string, error) {
	action, ok := models.LookupPortalAction(name)
	if !ok {
		return "", fmt.Errorf("unknown portal action %q", name)
	}
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	if action.ResourceParam == models.ParamUserID {
		resourceID = userID
	}
	if resourceID == "" {
		return "", fmt.Errorf("%s is required for %s", action.ResourceParam, name)
	}
	if expiryMinutes < 0 {
		expiryMinutes = b.tokens.DefaultExpiryMinutes()
	}

	token, err := b.tokens.CreateActionTokenWithExpiry(action.Scope(resourceID), userID, expiryMinutes)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set(models.ParamAction, string(name))
	q.Set(models.ParamToken, token)
	q.Set(models.ParamUserID, userID)
	q.Set(action.ResourceParam, resourceID)
	return b.baseURL + "?" + q.Encode(), nil
}

func (b *LinkBuilder) InvoiceURL(userID, invoiceID string) (string, error) {
	return b.ActionURL(models.ActionGetInvoice, userID, invoiceID, -1)
}

func (b *LinkBuilder) BillingURL(userID string) (string, error) {
	return b.ActionURL(models.ActionUpdateBilling, userID, userID, -1)
}

func (b *LinkBuilder) CancelURL(userID, subscriptionID string) (string, error) {
	return b.ActionURL(models.ActionCancelSubscription, userID, subscriptionID, -1)
}

func (b *LinkBuilder) CouponURL(userID, subscriptionID string) (string, error) {
	return b.ActionURL(models.ActionApplyCoupon, userID, subscriptionID, -1)
}

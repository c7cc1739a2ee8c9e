package repository

import (
	"context"

	"github.com/feedloop/paygate/internal/models"
)

// EntityRepository is the gateway's view of the billing platform. It returns
// typed records and performs the customer portal mutations. Implementations
// return models.ErrEntityNotFound (possibly wrapped) for unknown or foreign
// records and *models.APIError for rejections the customer should see.
type EntityRepository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetBilling(ctx context.Context, userID string) (*models.Billing, error)
	UpdateBilling(ctx context.Context, userID string, billing *models.Billing) (*models.Billing, error)
	GetSubscription(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error)
	CancelSubscription(ctx context.Context, userID, subscriptionID string, req *models.CancelSubscriptionRequest) (*models.Subscription, error)
	ApplyRenewalCoupon(ctx context.Context, userID, subscriptionID, coupon string) (*models.Subscription, error)
	GetInvoicePDF(ctx context.Context, userID, paymentID string) (*models.Invoice, error)
}

// PurchaseCallback receives completed checkouts after the redirect signature
// has been verified.
type PurchaseCallback interface {
	OnPurchase(ctx context.Context, info *models.RedirectInfo) error
}

// PurchaseCallbackFunc adapts a function to PurchaseCallback
type PurchaseCallbackFunc func(ctx context.Context, info *models.RedirectInfo) error

func (f PurchaseCallbackFunc) OnPurchase(ctx context.Context, info *models.RedirectInfo) error {
	return f(ctx, info)
}

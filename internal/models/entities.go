package models

// Entities mirror the billing platform's records. They are populated by the
// entity repository and by webhook "objects"; the gateway never persists them.

type User struct {
	ID         FlexibleID `json:"id"`
	Email      string     `json:"email"`
	First      string     `json:"first,omitempty"`
	Last       string     `json:"last,omitempty"`
	IsVerified bool       `json:"is_verified"`
	Created    string     `json:"created,omitempty"`
}

type Plan struct {
	ID    FlexibleID `json:"id"`
	Name  string     `json:"name"`
	Title string     `json:"title,omitempty"`
}

type License struct {
	ID          FlexibleID `json:"id"`
	UserID      FlexibleID `json:"user_id"`
	PlanID      FlexibleID `json:"plan_id"`
	PricingID   FlexibleID `json:"pricing_id"`
	Quota       *int       `json:"quota,omitempty"`
	Activated   int        `json:"activated"`
	Expiration  *string    `json:"expiration,omitempty"`
	IsCancelled bool       `json:"is_cancelled"`
	Created     string     `json:"created,omitempty"`
}

type Subscription struct {
	ID           FlexibleID `json:"id"`
	UserID       FlexibleID `json:"user_id"`
	LicenseID    FlexibleID `json:"license_id"`
	PlanID       FlexibleID `json:"plan_id"`
	PricingID    FlexibleID `json:"pricing_id"`
	BillingCycle int        `json:"billing_cycle"`
	Amount       float64    `json:"amount_per_cycle"`
	Currency     string     `json:"currency"`
	NextPayment  *string    `json:"next_payment,omitempty"`
	CanceledAt   *string    `json:"canceled_at,omitempty"`
	CouponID     *string    `json:"renewals_coupon_id,omitempty"`
	Created      string     `json:"created,omitempty"`
}

// IsActive reports whether the subscription has not been cancelled.
func (s *Subscription) IsActive() bool {
	return s.CanceledAt == nil || *s.CanceledAt == ""
}

type Payment struct {
	ID             FlexibleID `json:"id"`
	UserID         FlexibleID `json:"user_id"`
	LicenseID      FlexibleID `json:"license_id"`
	SubscriptionID FlexibleID `json:"subscription_id,omitempty"`
	Gross          float64    `json:"gross"`
	Currency       string     `json:"currency"`
	Type           string     `json:"type"`
	Created        string     `json:"created,omitempty"`
}

// IsRefund reports whether the payment is a refund record.
func (p *Payment) IsRefund() bool {
	return p.Type == "refund" || p.Gross < 0
}

type Install struct {
	ID        FlexibleID `json:"id"`
	UserID    FlexibleID `json:"user_id"`
	LicenseID FlexibleID `json:"license_id,omitempty"`
	URL       string     `json:"url,omitempty"`
	Title     string     `json:"title,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// Billing is the customer's invoicing profile, editable from the portal.
type Billing struct {
	BusinessName string `json:"business_name,omitempty"`
	TaxID        string `json:"tax_id,omitempty"`
	Phone        string `json:"phone,omitempty"`
	AddressLine1 string `json:"address_street,omitempty" binding:"required"`
	AddressLine2 string `json:"address_apt,omitempty"`
	City         string `json:"address_city,omitempty" binding:"required"`
	State        string `json:"address_state,omitempty"`
	Zip          string `json:"address_zip,omitempty"`
	Country      string `json:"address_country_code,omitempty" binding:"required,len=2"`
}

// Invoice is a rendered invoice document.
type Invoice struct {
	PaymentID string
	Filename  string
	PDF       []byte
}

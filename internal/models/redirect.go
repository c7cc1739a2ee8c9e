package models

import (
	"net/url"
	"strconv"
)

// RedirectInfo is the verified content of a checkout-completion redirect.
type RedirectInfo struct {
	UserID         string `json:"user_id"`
	PlanID         string `json:"plan_id"`
	PricingID      string `json:"pricing_id"`
	Email          string `json:"email"`
	Action         string `json:"action,omitempty"`
	LicenseID      string `json:"license_id,omitempty"`
	Expiration     string `json:"expiration,omitempty"`
	Quota          *int   `json:"quota,omitempty"`
	Trial          string `json:"trial,omitempty"`
	TrialEndsAt    string `json:"trial_ends_at,omitempty"`
	Currency       string `json:"currency,omitempty"`
	Amount         string `json:"amount,omitempty"`
	Tax            string `json:"tax,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	BillingCycle   string `json:"billing_cycle,omitempty"`
	PaymentID      string `json:"payment_id,omitempty"`
	Type           string `json:"type,omitempty"`
}

// RedirectInfoFromQuery maps the redirect query string. It returns nil when a
// mandatory field is missing.
func RedirectInfoFromQuery(q url.Values) *RedirectInfo {
	info := &RedirectInfo{
		UserID:         q.Get("user_id"),
		PlanID:         q.Get("plan_id"),
		PricingID:      q.Get("pricing_id"),
		Email:          q.Get("email"),
		Action:         q.Get("action"),
		LicenseID:      q.Get("license_id"),
		Expiration:     q.Get("expiration"),
		Trial:          q.Get("trial"),
		TrialEndsAt:    q.Get("trial_ends_at"),
		Currency:       q.Get("currency"),
		Amount:         q.Get("amount"),
		Tax:            q.Get("tax"),
		SubscriptionID: q.Get("subscription_id"),
		BillingCycle:   q.Get("billing_cycle"),
		PaymentID:      q.Get("payment_id"),
		Type:           q.Get("type"),
	}
	if info.UserID == "" || info.PlanID == "" || info.PricingID == "" || info.Email == "" {
		return nil
	}
	if raw := q.Get("quota"); raw != "" {
		if quota, err := strconv.Atoi(raw); err == nil {
			info.Quota = &quota
		}
	}
	return info
}

// IsSubscription reports whether the purchase created a recurring subscription.
func (r *RedirectInfo) IsSubscription() bool {
	return r.SubscriptionID != "" || (r.BillingCycle != "" && r.BillingCycle != "0")
}

// IsTrial reports whether the purchase started a trial.
func (r *RedirectInfo) IsTrial() bool {
	return r.Trial != "" && r.Trial != "false" && r.Trial != "0"
}

// ToQuery renders the normalized parameters appended to the post-purchase URL.
func (r *RedirectInfo) ToQuery() url.Values {
	q := url.Values{}
	q.Set("plan", r.PlanID)
	q.Set("is_subscription", strconv.FormatBool(r.IsSubscription()))
	if r.Quota != nil {
		q.Set("quote", strconv.Itoa(*r.Quota))
	}
	return q
}

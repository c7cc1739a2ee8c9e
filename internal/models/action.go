package models

// ActionName identifies a customer portal action carried in the `action`
// query parameter.
type ActionName string

const (
	ActionGetInvoice         ActionName = "get_invoice"
	ActionUpdateBilling      ActionName = "update_billing"
	ActionCancelSubscription ActionName = "cancel_subscription"
	ActionApplyCoupon        ActionName = "apply_coupon"
)

// Query parameters shared by the portal endpoints.
const (
	ParamAction         = "action"
	ParamToken          = "token"
	ParamUserID         = "userId"
	ParamInvoiceID      = "invoiceId"
	ParamSubscriptionID = "subscriptionId"
)

// TokenScope is the action string an action token is bound to, e.g.
// "invoice_5". Tokens for different resources never validate for each other.
func TokenScope(prefix, resourceID string) string {
	return prefix + "_" + resourceID
}

// Scope prefixes per portal action.
const (
	ScopeInvoice = "invoice"
	ScopeBilling = "billing"
	ScopeCancel  = "cancel"
	ScopeCoupon  = "coupon"
)

// PortalAction describes how a portal action is addressed and scoped.
type PortalAction struct {
	Name          ActionName
	Method        string
	ScopePrefix   string
	ResourceParam string
}

// Scope returns the token scope for the given resource.
func (p PortalAction) Scope(resourceID string) string {
	return TokenScope(p.ScopePrefix, resourceID)
}

var portalActions = map[ActionName]PortalAction{
	ActionGetInvoice:         {Name: ActionGetInvoice, Method: "GET", ScopePrefix: ScopeInvoice, ResourceParam: ParamInvoiceID},
	ActionUpdateBilling:      {Name: ActionUpdateBilling, Method: "POST", ScopePrefix: ScopeBilling, ResourceParam: ParamUserID},
	ActionCancelSubscription: {Name: ActionCancelSubscription, Method: "POST", ScopePrefix: ScopeCancel, ResourceParam: ParamSubscriptionID},
	ActionApplyCoupon:        {Name: ActionApplyCoupon, Method: "POST", ScopePrefix: ScopeCoupon, ResourceParam: ParamSubscriptionID},
}

// LookupPortalAction returns the descriptor of a known portal action.
func LookupPortalAction(name ActionName) (PortalAction, bool) {
	p, ok := portalActions[name]
	return p, ok
}

// CancelSubscriptionRequest is the body of a cancel_subscription action.
type CancelSubscriptionRequest struct {
	Reason    string `json:"reason" binding:"max=500"`
	ReasonIDs []int  `json:"reason_ids" binding:"dive,min=1"`
}

// ApplyCouponRequest is the body of an apply_coupon action.
type ApplyCouponRequest struct {
	Coupon string `json:"coupon" binding:"required,max=64"`
}

// ActionResult is the JSON body returned by mutating portal actions.
type ActionResult struct {
	Success bool        `json:"success"`
	Action  ActionName  `json:"action"`
	Data    interface{} `json:"data,omitempty"`
}

// WebhookResult is the JSON body returned for webhook deliveries.
type WebhookResult struct {
	Status  int    `json:"status"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

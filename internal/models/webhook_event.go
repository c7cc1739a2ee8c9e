package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrMissingEventType = errors.New("event type is required")

// EventType is the dispatch key of a webhook event, e.g. "license.created".
type EventType string

// EventCategory groups event types that share an objects shape.
type EventCategory string

const (
	CategoryLicense      EventCategory = "license"
	CategorySubscription EventCategory = "subscription"
	CategoryPayment      EventCategory = "payment"
	CategoryUser         EventCategory = "user"
	CategoryInstall      EventCategory = "install"
	CategoryOther        EventCategory = "other"
)

const (
	EventLicenseCreated      EventType = "license.created"
	EventLicenseUpdated      EventType = "license.updated"
	EventLicenseExtended     EventType = "license.extended"
	EventLicenseShortened    EventType = "license.shortened"
	EventLicenseCancelled    EventType = "license.cancelled"
	EventLicenseExpired      EventType = "license.expired"
	EventLicenseDeleted      EventType = "license.deleted"
	EventLicensePlanChanged  EventType = "license.plan.changed"
	EventLicenseQuotaChanged EventType = "license.quota.changed"

	EventSubscriptionCreated            EventType = "subscription.created"
	EventSubscriptionCancelled          EventType = "subscription.cancelled"
	EventSubscriptionRenewalFailed      EventType = "subscription.renewal.failed"
	EventSubscriptionRenewalRetry       EventType = "subscription.renewal.retry"
	EventSubscriptionRenewalsDiscounted EventType = "subscription.renewals.discounted"
	EventSubscriptionRenewalUpcoming    EventType = "subscription.renewal_reminder.sent"

	EventPaymentCreated EventType = "payment.created"
	EventPaymentRefund  EventType = "payment.refund"
	EventPaymentDispute EventType = "payment.dispute.created"

	EventUserCreated        EventType = "user.created"
	EventUserEmailChanged   EventType = "user.email.changed"
	EventUserBillingUpdated EventType = "user.billing.updated"

	EventInstallActivated   EventType = "install.activated"
	EventInstallDeactivated EventType = "install.deactivated"
	EventInstallUninstalled EventType = "install.uninstalled"
)

// eventCategories is the closed taxonomy. Types outside it still parse and
// dispatch, with CategoryOther payloads.
var eventCategories = map[EventType]EventCategory{
	EventLicenseCreated:      CategoryLicense,
	EventLicenseUpdated:      CategoryLicense,
	EventLicenseExtended:     CategoryLicense,
	EventLicenseShortened:    CategoryLicense,
	EventLicenseCancelled:    CategoryLicense,
	EventLicenseExpired:      CategoryLicense,
	EventLicenseDeleted:      CategoryLicense,
	EventLicensePlanChanged:  CategoryLicense,
	EventLicenseQuotaChanged: CategoryLicense,

	EventSubscriptionCreated:            CategorySubscription,
	EventSubscriptionCancelled:          CategorySubscription,
	EventSubscriptionRenewalFailed:      CategorySubscription,
	EventSubscriptionRenewalRetry:       CategorySubscription,
	EventSubscriptionRenewalsDiscounted: CategorySubscription,
	EventSubscriptionRenewalUpcoming:    CategorySubscription,

	EventPaymentCreated: CategoryPayment,
	EventPaymentRefund:  CategoryPayment,
	EventPaymentDispute: CategoryPayment,

	EventUserCreated:        CategoryUser,
	EventUserEmailChanged:   CategoryUser,
	EventUserBillingUpdated: CategoryUser,

	EventInstallActivated:   CategoryInstall,
	EventInstallDeactivated: CategoryInstall,
	EventInstallUninstalled: CategoryInstall,
}

// Category resolves the event type through the taxonomy registry.
func (t EventType) Category() EventCategory {
	if c, ok := eventCategories[t]; ok {
		return c
	}
	return CategoryOther
}

// Known reports whether the type is part of the taxonomy.
func (t EventType) Known() bool {
	_, ok := eventCategories[t]
	return ok
}

// KnownEventTypes lists every registered event type.
func KnownEventTypes() []EventType {
	types := make([]EventType, 0, len(eventCategories))
	for t := range eventCategories {
		types = append(types, t)
	}
	return types
}

// FlexibleID accepts both JSON strings and JSON numbers. The platform emits
// numeric ids in some payloads and string ids in others.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*id = FlexibleID(b)
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

// WebhookEvent is the shared envelope of every webhook delivery.
type WebhookEvent struct {
	ID      FlexibleID      `json:"id"`
	Type    EventType       `json:"type"`
	Created string          `json:"created"`
	Updated string          `json:"updated,omitempty"`
	State   string          `json:"state,omitempty"`
	Objects json.RawMessage `json:"objects,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ParseWebhookEvent decodes a verified raw body. The body must already have
// passed signature verification; parsing never happens first.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("invalid event body: %w", err)
	}
	if event.Type == "" {
		return nil, ErrMissingEventType
	}
	return &event, nil
}

// EventPayload is the typed, category-specific view of an event's objects.
type EventPayload interface {
	Category() EventCategory
}

type LicensePayload struct {
	User    *User    `json:"user,omitempty"`
	License *License `json:"license,omitempty"`
	Plan    *Plan    `json:"plan,omitempty"`
	Install *Install `json:"install,omitempty"`
}

func (*LicensePayload) Category() EventCategory { return CategoryLicense }

type SubscriptionPayload struct {
	User         *User         `json:"user,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
	License      *License      `json:"license,omitempty"`
}

func (*SubscriptionPayload) Category() EventCategory { return CategorySubscription }

type PaymentPayload struct {
	User         *User         `json:"user,omitempty"`
	Payment      *Payment      `json:"payment,omitempty"`
	License      *License      `json:"license,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

func (*PaymentPayload) Category() EventCategory { return CategoryPayment }

type UserPayload struct {
	User *User `json:"user,omitempty"`
}

func (*UserPayload) Category() EventCategory { return CategoryUser }

type InstallPayload struct {
	User    *User    `json:"user,omitempty"`
	Install *Install `json:"install,omitempty"`
	License *License `json:"license,omitempty"`
}

func (*InstallPayload) Category() EventCategory { return CategoryInstall }

// GenericPayload keeps the raw objects of types outside the taxonomy.
type GenericPayload struct {
	Objects map[string]json.RawMessage
}

func (*GenericPayload) Category() EventCategory { return CategoryOther }

var payloadFactories = map[EventCategory]func() EventPayload{
	CategoryLicense:      func() EventPayload { return &LicensePayload{} },
	CategorySubscription: func() EventPayload { return &SubscriptionPayload{} },
	CategoryPayment:      func() EventPayload { return &PaymentPayload{} },
	CategoryUser:         func() EventPayload { return &UserPayload{} },
	CategoryInstall:      func() EventPayload { return &InstallPayload{} },
}

// Payload decodes the objects section into the variant registered for the
// event's category.
func (e *WebhookEvent) Payload() (EventPayload, error) {
	newPayload, ok := payloadFactories[e.Type.Category()]
	if !ok {
		generic := &GenericPayload{Objects: map[string]json.RawMessage{}}
		if len(e.Objects) > 0 {
			if err := json.Unmarshal(e.Objects, &generic.Objects); err != nil {
				return nil, fmt.Errorf("decoding %s objects: %w", e.Type, err)
			}
		}
		return generic, nil
	}
	payload := newPayload()
	if len(e.Objects) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(e.Objects, payload); err != nil {
		return nil, fmt.Errorf("decoding %s objects: %w", e.Type, err)
	}
	return payload, nil
}

// ChangeData is the data shape of plan/quota change events.
type ChangeData struct {
	From json.RawMessage `json:"from"`
	To   json.RawMessage `json:"to"`
}

// DecodeData unmarshals the event's data section into v.
func (e *WebhookEvent) DecodeData(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decoding %s data: %w", e.Type, err)
	}
	return nil
}

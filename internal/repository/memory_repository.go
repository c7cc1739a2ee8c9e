package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/feedloop/paygate/internal/models"
	"go.uber.org/zap"
)

const timestampLayout = "2006-01-02 15:04:05"

// MemoryRepository is an in-process EntityRepository. It backs local runs and
// tests, and mirrors webhook deliveries through ApplyEvent so the portal sees
// the same state the platform reported.
type MemoryRepository struct {
	logger *zap.Logger
	now    func() time.Time

	mu            sync.RWMutex
	users         map[string]*models.User
	billing       map[string]*models.Billing
	licenses      map[string]*models.License
	subscriptions map[string]*models.Subscription
	payments      map[string]*models.Payment
	invoices      map[string]*models.Invoice
	coupons       map[string]struct{}
	purchases     []*models.RedirectInfo
}

func NewMemoryRepository(logger *zap.Logger) *MemoryRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryRepository{
		logger:        logger,
		now:           time.Now,
		users:         make(map[string]*models.User),
		billing:       make(map[string]*models.Billing),
		licenses:      make(map[string]*models.License),
		subscriptions: make(map[string]*models.Subscription),
		payments:      make(map[string]*models.Payment),
		invoices:      make(map[string]*models.Invoice),
		coupons:       make(map[string]struct{}),
	}
}

func (r *MemoryRepository) PutUser(u *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID.String()] = u
}

func (r *MemoryRepository) PutLicense(l *models.License) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.licenses[l.ID.String()] = l
}

func (r *MemoryRepository) PutSubscription(s *models.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions[s.ID.String()] = s
}

// PutPayment stores a payment and, when pdf is non-empty, its invoice.
func (r *MemoryRepository) PutPayment(p *models.Payment, pdf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := p.ID.String()
	r.payments[id] = p
	if len(pdf) > 0 {
		r.invoices[id] = &models.Invoice{
			PaymentID: id,
			Filename:  fmt.Sprintf("invoice_%s.pdf", id),
			PDF:       pdf,
		}
	}
}

// AddCoupon makes a renewal coupon code acceptable. Codes are case-insensitive.
func (r *MemoryRepository) AddCoupon(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coupons[strings.ToUpper(code)] = struct{}{}
}

func (r *MemoryRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, models.ErrEntityNotFound)
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetBilling(ctx context.Context, userID string) (*models.Billing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.users[userID]; !ok {
		return nil, fmt.Errorf("user %s: %w", userID, models.ErrEntityNotFound)
	}
	b, ok := r.billing[userID]
	if !ok {
		return &models.Billing{}, nil
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryRepository) UpdateBilling(ctx context.Context, userID string, billing *models.Billing) (*models.Billing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return nil, fmt.Errorf("user %s: %w", userID, models.ErrEntityNotFound)
	}
	cp := *billing
	cp.Country = strings.ToUpper(cp.Country)
	r.billing[userID] = &cp

	r.logger.Info("Billing updated", zap.String("user_id", userID))
	out := cp
	return &out, nil
}

// subscriptionLocked returns the subscription if it belongs to userID.
// Foreign records are reported as missing.
func (r *MemoryRepository) subscriptionLocked(userID, subscriptionID string) (*models.Subscription, error) {
	s, ok := r.subscriptions[subscriptionID]
	if !ok || s.UserID.String() != userID {
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, models.ErrEntityNotFound)
	}
	return s, nil
}

func (r *MemoryRepository) GetSubscription(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, err := r.subscriptionLocked(userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) CancelSubscription(ctx context.Context, userID, subscriptionID string, req *models.CancelSubscriptionRequest) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.subscriptionLocked(userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !s.IsActive() {
		return nil, models.NewBadRequest("subscription is already cancelled")
	}
	canceledAt := r.now().UTC().Format(timestampLayout)
	s.CanceledAt = &canceledAt
	s.NextPayment = nil

	fields := []zap.Field{zap.String("user_id", userID), zap.String("subscription_id", subscriptionID)}
	if req != nil {
		fields = append(fields, zap.Ints("reason_ids", req.ReasonIDs))
	}
	r.logger.Info("Subscription cancelled", fields...)
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) ApplyRenewalCoupon(ctx context.Context, userID, subscriptionID, coupon string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.subscriptionLocked(userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !s.IsActive() {
		return nil, models.NewBadRequest("subscription is cancelled")
	}
	code := strings.ToUpper(strings.TrimSpace(coupon))
	if _, ok := r.coupons[code]; !ok {
		return nil, models.NewValidationFailed("invalid coupon", []models.Issue{{Field: "coupon", Message: "unknown coupon code"}})
	}
	s.CouponID = &code

	r.logger.Info("Renewal coupon applied", zap.String("user_id", userID), zap.String("subscription_id", subscriptionID))
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) GetInvoicePDF(ctx context.Context, userID, paymentID string) (*models.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[paymentID]
	if !ok || p.UserID.String() != userID {
		return nil, fmt.Errorf("payment %s: %w", paymentID, models.ErrEntityNotFound)
	}
	inv, ok := r.invoices[paymentID]
	if !ok {
		return nil, fmt.Errorf("invoice for payment %s: %w", paymentID, models.ErrEntityNotFound)
	}
	cp := *inv
	return &cp, nil
}

// OnPurchase records a verified checkout.
func (r *MemoryRepository) OnPurchase(ctx context.Context, info *models.RedirectInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purchases = append(r.purchases, info)
	if _, ok := r.users[info.UserID]; !ok {
		r.users[info.UserID] = &models.User{ID: models.FlexibleID(info.UserID), Email: info.Email}
	}
	r.logger.Info("Purchase recorded",
		zap.String("user_id", info.UserID),
		zap.String("plan_id", info.PlanID),
		zap.Bool("subscription", info.IsSubscription()))
	return nil
}

// Purchases returns the checkouts recorded so far.
func (r *MemoryRepository) Purchases() []*models.RedirectInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.RedirectInfo, len(r.purchases))
	copy(out, r.purchases)
	return out
}

// ApplyEvent mirrors the objects of a webhook event into the repository.
// Its signature matches a webhook event handler.
func (r *MemoryRepository) ApplyEvent(ctx context.Context, event *models.WebhookEvent) error {
	payload, err := event.Payload()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch p := payload.(type) {
	case *models.LicensePayload:
		r.putUserLocked(p.User)
		if p.License != nil {
			r.licenses[p.License.ID.String()] = p.License
		}
	case *models.SubscriptionPayload:
		r.putUserLocked(p.User)
		if p.Subscription != nil {
			r.subscriptions[p.Subscription.ID.String()] = p.Subscription
		}
		if p.License != nil {
			r.licenses[p.License.ID.String()] = p.License
		}
	case *models.PaymentPayload:
		r.putUserLocked(p.User)
		if p.Payment != nil {
			r.payments[p.Payment.ID.String()] = p.Payment
		}
	case *models.UserPayload:
		r.putUserLocked(p.User)
	case *models.InstallPayload:
		r.putUserLocked(p.User)
	default:
		r.logger.Debug("Event has no mirrored objects", zap.String("event_type", string(event.Type)))
	}
	return nil
}

func (r *MemoryRepository) putUserLocked(u *models.User) {
	if u == nil || u.ID == "" {
		return
	}
	r.users[u.ID.String()] = u
}

package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/repository"
	"github.com/feedloop/paygate/internal/services"
	"github.com/feedloop/paygate/internal/testutils"
	"github.com/feedloop/paygate/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEntityRepository struct {
	mock.Mock
}

func (m *MockEntityRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockEntityRepository) GetBilling(ctx context.Context, userID string) (*models.Billing, error) {
	args := m.Called(ctx, userID)
	b, _ := args.Get(0).(*models.Billing)
	return b, args.Error(1)
}

func (m *MockEntityRepository) UpdateBilling(ctx context.Context, userID string, billing *models.Billing) (*models.Billing, error) {
	args := m.Called(ctx, userID, billing)
	b, _ := args.Get(0).(*models.Billing)
	return b, args.Error(1)
}

func (m *MockEntityRepository) GetSubscription(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subscriptionID)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func (m *MockEntityRepository) CancelSubscription(ctx context.Context, userID, subscriptionID string, req *models.CancelSubscriptionRequest) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subscriptionID, req)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func (m *MockEntityRepository) ApplyRenewalCoupon(ctx context.Context, userID, subscriptionID, coupon string) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subscriptionID, coupon)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func (m *MockEntityRepository) GetInvoicePDF(ctx context.Context, userID, paymentID string) (*models.Invoice, error) {
	args := m.Called(ctx, userID, paymentID)
	inv, _ := args.Get(0).(*models.Invoice)
	return inv, args.Error(1)
}

type gateway struct {
	router   *Router
	links    *services.LinkBuilder
	listener *webhook.Listener
	verifier *services.RedirectVerifier
	repo     *MockEntityRepository
	purchase []*models.RedirectInfo
}

func newGateway(t *testing.T, afterPurchaseURL string) *gateway {
	t.Helper()
	hmacService := services.NewHMACService(testutils.TestSecret)
	tokens := services.NewActionTokenService(hmacService, "product-1")
	links, err := services.NewLinkBuilder(tokens, "http://billing.example.com")
	require.NoError(t, err)
	verifier, err := services.NewRedirectVerifier(hmacService, "")
	require.NoError(t, err)
	auth := services.NewWebhookAuthenticator(hmacService)

	g := &gateway{
		links:    links,
		listener: webhook.NewListener(auth, nil),
		verifier: verifier,
		repo:     new(MockEntityRepository),
	}
	callback := repository.PurchaseCallbackFunc(func(ctx context.Context, info *models.RedirectInfo) error {
		g.purchase = append(g.purchase, info)
		return nil
	})
	redirect, err := NewPurchaseRedirectAction(verifier, callback, afterPurchaseURL)
	require.NoError(t, err)

	g.router = NewRouter(nil, append([]Action{
		NewWebhookAction(auth, g.listener),
		redirect,
	}, PortalActions(tokens, g.repo)...)...)
	return g
}

func (g *gateway) do(method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, vs := range header {
		req.Header[k] = vs
	}
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	return w
}

func TestWebhookAction(t *testing.T) {
	g := newGateway(t, "")
	var calls int32
	require.NoError(t, g.listener.On(webhook.HandlerFunc(func(ctx context.Context, event *models.WebhookEvent) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}), models.EventLicenseCreated))

	body, sig := testutils.SignedWebhook(testutils.TestSecret, `{"id":1,"type":"license.created","objects":{}}`)

	t.Run("signed delivery", func(t *testing.T) {
		w := g.do(http.MethodPost, "/gateway", body, http.Header{"X-Signature": {sig}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":200,"success":true}`, w.Body.String())
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("bad signature", func(t *testing.T) {
		w := g.do(http.MethodPost, "/gateway", body, http.Header{"X-Signature": {"abcd"}})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no signature header", func(t *testing.T) {
		w := g.do(http.MethodPost, "/gateway", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func signedRedirect(g *gateway, query string) string {
	return g.verifier.SignURL("http://billing.example.com/gateway?" + query)
}

func TestPurchaseRedirectAction(t *testing.T) {
	const query = "user_id=u1&plan_id=3&pricing_id=4&email=jane%40example.com&quota=5&billing_cycle=12"

	t.Run("redirects with normalized params", func(t *testing.T) {
		g := newGateway(t, "https://app.example.com/welcome?from=checkout")
		w := g.do(http.MethodGet, signedRedirect(g, query), nil, nil)
		require.Equal(t, http.StatusFound, w.Code)

		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "app.example.com", loc.Host)
		q := loc.Query()
		assert.Equal(t, "checkout", q.Get("from"))
		assert.Equal(t, "3", q.Get("plan"))
		assert.Equal(t, "true", q.Get("is_subscription"))
		assert.Equal(t, "5", q.Get("quote"))

		require.Len(t, g.purchase, 1)
		assert.Equal(t, "jane@example.com", g.purchase[0].Email)
	})

	t.Run("json without post purchase url", func(t *testing.T) {
		g := newGateway(t, "")
		w := g.do(http.MethodGet, signedRedirect(g, query), nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		var res models.ActionResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.True(t, res.Success)
	})

	t.Run("tampered redirect is a bad request", func(t *testing.T) {
		g := newGateway(t, "https://app.example.com/welcome")
		signed := signedRedirect(g, query)
		tampered := bytes.Replace([]byte(signed), []byte("plan_id=3"), []byte("plan_id=9"), 1)
		w := g.do(http.MethodGet, string(tampered), nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, g.purchase)
	})
}

func linkTarget(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.RequestURI()
}

func TestInvoiceAction(t *testing.T) {
	g := newGateway(t, "")
	link, err := g.links.InvoiceURL("u1", "5")
	require.NoError(t, err)

	g.repo.On("GetInvoicePDF", mock.Anything, "u1", "5").
		Return(&models.Invoice{PaymentID: "5", Filename: "invoice_5.pdf", PDF: []byte("%PDF-1.4")}, nil)

	w := g.do(http.MethodGet, linkTarget(t, link), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "invoice_5.pdf")
	assert.Equal(t, "%PDF-1.4", w.Body.String())
	g.repo.AssertExpectations(t)

	t.Run("token for another invoice", func(t *testing.T) {
		forged := bytes.Replace([]byte(linkTarget(t, link)), []byte("invoiceId=5"), []byte("invoiceId=6"), 1)
		w := g.do(http.MethodGet, string(forged), nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token for another user", func(t *testing.T) {
		forged := bytes.Replace([]byte(linkTarget(t, link)), []byte("userId=u1"), []byte("userId=u2"), 1)
		w := g.do(http.MethodGet, string(forged), nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing invoice", func(t *testing.T) {
		other, err := g.links.InvoiceURL("u1", "404")
		require.NoError(t, err)
		g.repo.On("GetInvoicePDF", mock.Anything, "u1", "404").Return(nil, models.ErrEntityNotFound)
		w := g.do(http.MethodGet, linkTarget(t, other), nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("wrong method is unsupported", func(t *testing.T) {
		w := g.do(http.MethodPost, linkTarget(t, link), nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBillingAction(t *testing.T) {
	g := newGateway(t, "")
	link, err := g.links.BillingURL("u1")
	require.NoError(t, err)
	target := linkTarget(t, link)

	t.Run("valid body", func(t *testing.T) {
		g.repo.On("UpdateBilling", mock.Anything, "u1", mock.MatchedBy(func(b *models.Billing) bool {
			return b.City == "Oslo" && b.Country == "NO"
		})).Return(&models.Billing{City: "Oslo", Country: "NO"}, nil).Once()

		body := []byte(`{"address_street":"1 Main St","address_city":"Oslo","address_country_code":"NO"}`)
		w := g.do(http.MethodPost, target, body, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var res models.ActionResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.True(t, res.Success)
		assert.Equal(t, models.ActionUpdateBilling, res.Action)
	})

	t.Run("validation issues", func(t *testing.T) {
		body := []byte(`{"address_street":"1 Main St","address_country_code":"NOR"}`)
		w := g.do(http.MethodPost, target, body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp struct {
			Error   string         `json:"error"`
			Details []models.Issue `json:"details"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "validation failed", resp.Error)
		fields := map[string]string{}
		for _, issue := range resp.Details {
			fields[issue.Field] = issue.Message
		}
		assert.Equal(t, "is required", fields["address_city"])
		assert.Equal(t, "must be exactly 2 characters", fields["address_country_code"])
	})

	t.Run("malformed body", func(t *testing.T) {
		w := g.do(http.MethodPost, target, []byte(`{`), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCancelAction(t *testing.T) {
	g := newGateway(t, "")
	link, err := g.links.CancelURL("u1", "77")
	require.NoError(t, err)
	canceledAt := "2024-10-01 12:00:00"

	g.repo.On("CancelSubscription", mock.Anything, "u1", "77", &models.CancelSubscriptionRequest{Reason: "too expensive", ReasonIDs: []int{2}}).
		Return(&models.Subscription{ID: "77", CanceledAt: &canceledAt}, nil).Once()

	w := g.do(http.MethodPost, linkTarget(t, link), []byte(`{"reason":"too expensive","reason_ids":[2]}`), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	g.repo.AssertExpectations(t)

	w = g.do(http.MethodPost, linkTarget(t, link), []byte(`{"reason_ids":[0]}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	t.Run("coupon token cannot cancel", func(t *testing.T) {
		coupon, err := g.links.CouponURL("u1", "77")
		require.NoError(t, err)
		forged := bytes.Replace([]byte(linkTarget(t, coupon)), []byte("action=apply_coupon"), []byte("action=cancel_subscription"), 1)
		w := g.do(http.MethodPost, string(forged), []byte(`{}`), nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCouponAction(t *testing.T) {
	g := newGateway(t, "")
	link, err := g.links.CouponURL("u1", "77")
	require.NoError(t, err)
	target := linkTarget(t, link)

	g.repo.On("ApplyRenewalCoupon", mock.Anything, "u1", "77", "SPRING").
		Return(&models.Subscription{ID: "77"}, nil).Once()
	w := g.do(http.MethodPost, target, []byte(`{"coupon":"SPRING"}`), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	g.repo.On("ApplyRenewalCoupon", mock.Anything, "u1", "77", "NOPE").
		Return(nil, models.NewValidationFailed("invalid coupon", nil)).Once()
	w = g.do(http.MethodPost, target, []byte(`{"coupon":"NOPE"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = g.do(http.MethodPost, target, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	g.repo.AssertExpectations(t)
}

func TestPortalTokenExpiry(t *testing.T) {
	now := time.Now()
	hmacService := services.NewHMACService(testutils.TestSecret)
	tokens := services.NewActionTokenService(hmacService, "product-1", services.WithClock(func() time.Time { return now }))
	links, err := services.NewLinkBuilder(tokens, "http://billing.example.com")
	require.NoError(t, err)
	repo := new(MockEntityRepository)
	router := NewRouter(nil, PortalActions(tokens, repo)...)

	link, err := links.InvoiceURL("u1", "5")
	require.NoError(t, err)
	now = now.Add(61 * time.Minute)

	req := httptest.NewRequest(http.MethodGet, linkTarget(t, link), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	repo.AssertNotCalled(t, "GetInvoicePDF", mock.Anything, mock.Anything, mock.Anything)
}

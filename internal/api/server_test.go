package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/feedloop/paygate/internal/config"
	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/repository"
	"github.com/feedloop/paygate/internal/testutils"
	"github.com/feedloop/paygate/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterToken = "master-token"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Gateway: config.GatewayConfig{
			SecretKey:          testutils.TestSecret,
			ProductID:          "1234",
			PublicURL:          "https://billing.example.com",
			AfterPurchaseURL:   "https://app.example.com/welcome",
			TokenExpiryMinutes: 60,
			MaxBodyBytes:       1 << 20,
			DispatchTimeout:    time.Second,
		},
		Auth: config.AuthConfig{MasterToken: masterToken, JWTSecret: "jwt-secret"},
	}
}

func newTestServer(t *testing.T) (*Server, *repository.MemoryRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepository(nil)
	accessLog := logrus.New()
	accessLog.SetOutput(io.Discard)

	srv, err := NewServer(testConfig(), Dependencies{
		AccessLog: accessLog,
		Entities:  repo,
		Purchases: repo,
	})
	require.NoError(t, err)
	return srv, repo
}

func TestNewServer_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Gateway.SecretKey = "short"
	_, err := NewServer(cfg, Dependencies{})
	assert.Error(t, err)
}

func TestServer_WebhookEndpoints(t *testing.T) {
	srv, repo := newTestServer(t)
	require.NoError(t, srv.Listener.On(webhook.HandlerFunc(repo.ApplyEvent),
		models.EventLicenseCreated, models.EventSubscriptionCreated))

	body, sig := testutils.SignedWebhook(testutils.TestSecret,
		`{"id":1,"type":"subscription.created","objects":{"user":{"id":"u1","email":"jane@example.com"},"subscription":{"id":"77","user_id":"u1"}}}`)

	for _, path := range []string{"/webhook", "/gateway"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
			req.Header.Set("x-signature", sig)
			srv.Engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"status":200,"success":true}`, w.Body.String())
		})
	}

	sub, err := repo.GetSubscription(context.Background(), "u1", "77")
	require.NoError(t, err)
	assert.True(t, sub.IsActive())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("x-signature", "bad")
	srv.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_PortalFlow(t *testing.T) {
	srv, repo := newTestServer(t)
	repo.PutUser(&models.User{ID: "u1", Email: "jane@example.com"})
	repo.PutSubscription(&models.Subscription{ID: "77", UserID: "u1"})
	repo.AddCoupon("SPRING")

	// Mint a link through the admin API.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/links", bytes.NewBufferString(`{"action":"apply_coupon","user_id":"u1","resource_id":"77"}`))
	req.Header.Set("Authorization", "Bearer "+masterToken)
	srv.Engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var link models.CreateLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	u, err := url.Parse(link.URL)
	require.NoError(t, err)
	assert.Equal(t, "billing.example.com", u.Host)

	// Follow it.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, u.RequestURI(), bytes.NewBufferString(`{"coupon":"spring"}`))
	srv.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	sub, err := repo.GetSubscription(context.Background(), "u1", "77")
	require.NoError(t, err)
	require.NotNil(t, sub.CouponID)
	assert.Equal(t, "SPRING", *sub.CouponID)

	// Links require admin credentials.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/links", bytes.NewBufferString(`{}`))
	srv.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_PurchaseRedirect(t *testing.T) {
	srv, repo := newTestServer(t)

	signed := srv.Redirect.SignURL("http://billing.example.com/gateway?user_id=u5&plan_id=3&pricing_id=4&email=a%40b.c")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, signed, nil)
	srv.Engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "3", loc.Query().Get("plan"))
	assert.Equal(t, "false", loc.Query().Get("is_subscription"))
	assert.Len(t, repo.Purchases(), 1)
}

func TestServer_StatusAndRequestID(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	srv.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotContains(t, w.Body.String(), testutils.TestSecret)
}

func TestServer_RateLimitedWithRedis(t *testing.T) {
	rdb := testutils.TestRedis(t)
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{BucketSize: 1, RefillRate: 1, WindowSeconds: 60}

	srv, err := NewServer(cfg, Dependencies{Redis: rdb, Entities: repository.NewMemoryRepository(nil)})
	require.NoError(t, err)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/gateway", nil)
		req.RemoteAddr = "10.1.1.1:1234"
		srv.Engine.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}

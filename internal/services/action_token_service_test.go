package services

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestTokenService(clock *fakeClock) *ActionTokenService {
	return NewActionTokenService(NewHMACService(testSecret), "product-1", WithClock(clock.Now))
}

func TestActionTokenService_CreateAndVerify(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1730000000, 0)}
	ts := newTestTokenService(clock)

	token, err := ts.CreateActionToken("invoice_5", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	parts := strings.Split(token, "::")
	require.Len(t, parts, 2)
	assert.Len(t, parts[1], 64)

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"expiresAt":1730003600000`)
	assert.Contains(t, string(payload), `"nonce":"`)
	assert.NotContains(t, string(payload), "u1")
	assert.NotContains(t, string(payload), "invoice_5")

	assert.True(t, ts.VerifyActionToken(token, "invoice_5", "u1"))
}

func TestActionTokenService_Expiry(t *testing.T) {
	start := time.Unix(1730000000, 0)

	t.Run("zero expiry is invalid immediately", func(t *testing.T) {
		clock := &fakeClock{now: start}
		ts := newTestTokenService(clock)
		token, err := ts.CreateActionTokenWithExpiry("invoice_5", "u1", 0)
		require.NoError(t, err)
		assert.False(t, ts.VerifyActionToken(token, "invoice_5", "u1"))
	})

	t.Run("sixty minutes", func(t *testing.T) {
		clock := &fakeClock{now: start}
		ts := newTestTokenService(clock)
		token, err := ts.CreateActionTokenWithExpiry("invoice_5", "u1", 60)
		require.NoError(t, err)

		clock.now = start.Add(59 * time.Minute)
		assert.True(t, ts.VerifyActionToken(token, "invoice_5", "u1"))

		clock.now = start.Add(60 * time.Minute)
		assert.False(t, ts.VerifyActionToken(token, "invoice_5", "u1"))

		clock.now = start.Add(61 * time.Minute)
		assert.False(t, ts.VerifyActionToken(token, "invoice_5", "u1"))
	})

	t.Run("reusable until expiry", func(t *testing.T) {
		clock := &fakeClock{now: start}
		ts := newTestTokenService(clock)
		token, err := ts.CreateActionToken("billing_u1", "u1")
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			assert.True(t, ts.VerifyActionToken(token, "billing_u1", "u1"))
		}
	})

	t.Run("negative expiry rejected", func(t *testing.T) {
		ts := newTestTokenService(&fakeClock{now: start})
		_, err := ts.CreateActionTokenWithExpiry("invoice_5", "u1", -1)
		assert.ErrorIs(t, err, ErrInvalidExpiry)
	})

	t.Run("default expiry option", func(t *testing.T) {
		clock := &fakeClock{now: start}
		ts := NewActionTokenService(NewHMACService(testSecret), "product-1", WithClock(clock.Now), WithDefaultExpiry(5))
		assert.Equal(t, 5, ts.DefaultExpiryMinutes())
		token, err := ts.CreateActionToken("invoice_5", "u1")
		require.NoError(t, err)
		clock.now = start.Add(6 * time.Minute)
		assert.False(t, ts.VerifyActionToken(token, "invoice_5", "u1"))
	})
}

func TestActionTokenService_ScopeIsolation(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1730000000, 0)}
	ts := newTestTokenService(clock)

	token, err := ts.CreateActionToken("invoice_5", "u1")
	require.NoError(t, err)

	assert.False(t, ts.VerifyActionToken(token, "invoice_5", "u2"))
	assert.False(t, ts.VerifyActionToken(token, "invoice_6", "u1"))
	assert.False(t, ts.VerifyActionToken(token, "", "u1"))

	otherProduct := NewActionTokenService(NewHMACService(testSecret), "product-2", WithClock(clock.Now))
	assert.False(t, otherProduct.VerifyActionToken(token, "invoice_5", "u1"))

	otherKey := NewActionTokenService(NewHMACService("different-secret-different-secret"), "product-1", WithClock(clock.Now))
	assert.False(t, otherKey.VerifyActionToken(token, "invoice_5", "u1"))
}

func TestActionTokenService_EmptyAction(t *testing.T) {
	ts := newTestTokenService(&fakeClock{now: time.Now()})
	_, err := ts.CreateActionToken("", "u1")
	assert.ErrorIs(t, err, ErrEmptyAction)
}

func TestActionTokenService_MalformedTokens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1730000000, 0)}
	ts := newTestTokenService(clock)

	valid, err := ts.CreateActionToken("invoice_5", "u1")
	require.NoError(t, err)
	parts := strings.Split(valid, "::")
	sig := parts[1]

	encode := func(s string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(s))
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"random string", "not-a-token-at-all"},
		{"truncated", valid[:len(valid)/2]},
		{"missing signature", parts[0] + "::"},
		{"three parts", valid + "::extra"},
		{"bad base64", "!!!!::" + sig},
		{"not json", encode("hello") + "::" + sig},
		{"string expiresAt", encode(`{"expiresAt":"1730003600000","nonce":"ab"}`) + "::" + sig},
		{"float expiresAt", encode(`{"expiresAt":1.7e12,"nonce":"ab"}`) + "::" + sig},
		{"null expiresAt", encode(`{"expiresAt":null,"nonce":"ab"}`) + "::" + sig},
		{"missing nonce", encode(`{"expiresAt":9999999999999}`) + "::" + sig},
		{"json array", encode(`[1,2]`) + "::" + sig},
		{"tampered signature", parts[0] + "::" + strings.Repeat("0", 64)},
		{"non-hex signature", parts[0] + "::" + strings.Repeat("z", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, ts.VerifyActionToken(tt.token, "invoice_5", "u1"))
			})
		})
	}
}

func TestActionTokenService_ExtendedPayloadRejected(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1730000000, 0)}
	ts := newTestTokenService(clock)

	token, err := ts.CreateActionTokenWithExpiry("invoice_5", "u1", 1)
	require.NoError(t, err)
	parts := strings.Split(token, "::")
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)

	// Push the expiry forward without re-signing.
	forged := strings.Replace(string(payload), "1730000060000", "1830000060000", 1)
	require.NotEqual(t, string(payload), forged)
	forgedToken := base64.RawURLEncoding.EncodeToString([]byte(forged)) + "::" + parts[1]

	clock.now = clock.now.Add(2 * time.Minute)
	assert.False(t, ts.VerifyActionToken(forgedToken, "invoice_5", "u1"))
}

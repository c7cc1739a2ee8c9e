package services

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTokenExpiryMinutes is used when no expiry is configured.
	DefaultTokenExpiryMinutes = 60

	tokenSeparator = "::"
	nonceBytes     = 16
)

var (
	ErrEmptyAction   = errors.New("action is required")
	ErrInvalidExpiry = errors.New("expiry must not be negative")
)

type actionTokenPayload struct {
	ExpiresAt json.RawMessage `json:"expiresAt"`
	Nonce     string          `json:"nonce"`
}

// ActionTokenService issues short-lived capability tokens bound to
// (action, userID, productID). The token carries only its expiry and nonce:
// verifiers must supply the action and user they expect. Tokens are not
// single use and cannot be revoked before they expire.
type ActionTokenService struct {
	hmac          *HMACService
	productID     string
	defaultExpiry int
	now           func() time.Time
}

// ActionTokenOption configures an ActionTokenService
type ActionTokenOption func(*ActionTokenService)

// WithClock overrides the time source
func WithClock(now func() time.Time) ActionTokenOption {
	return func(s *ActionTokenService) {
		s.now = now
	}
}

// WithDefaultExpiry sets the expiry used by CreateActionToken
func WithDefaultExpiry(minutes int) ActionTokenOption {
	return func(s *ActionTokenService) {
		if minutes >= 0 {
			s.defaultExpiry = minutes
		}
	}
}

func NewActionTokenService(hmacService *HMACService, productID string, opts ...ActionTokenOption) *ActionTokenService {
	s := &ActionTokenService{
		hmac:          hmacService,
		productID:     productID,
		defaultExpiry: DefaultTokenExpiryMinutes,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultExpiryMinutes returns the expiry applied by CreateActionToken
func (s *ActionTokenService) DefaultExpiryMinutes() int {
	return s.defaultExpiry
}

// CreateActionToken creates a token with the default expiry
func (s *ActionTokenService) CreateActionToken(action, userID string) (string, error) {
	return s.CreateActionTokenWithExpiry(action, userID, s.defaultExpiry)
}

// CreateActionTokenWithExpiry creates a token valid for expiryMinutes. A zero
// expiry produces a token that is already expired.
func (s *ActionTokenService) CreateActionTokenWithExpiry(action, userID string, expiryMinutes int) (string, error) {
	if action == "" {
		return "", ErrEmptyAction
	}
	if expiryMinutes < 0 {
		return "", ErrInvalidExpiry
	}

	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating token nonce: %w", err)
	}
	nonceHex := hex.EncodeToString(nonce)
	expiresAt := s.now().Add(time.Duration(expiryMinutes) * time.Minute).UnixMilli()

	payload, err := json.Marshal(map[string]interface{}{
		"expiresAt": expiresAt,
		"nonce":     nonceHex,
	})
	if err != nil {
		return "", fmt.Errorf("encoding token payload: %w", err)
	}

	signature := s.hmac.Sign(s.message(action, userID, strconv.FormatInt(expiresAt, 10), nonceHex))
	return base64.RawURLEncoding.EncodeToString(payload) + tokenSeparator + signature, nil
}

// VerifyActionToken reports whether token was issued for exactly this action
// and user and has not expired. It never panics on malformed input.
func (s *ActionTokenService) VerifyActionToken(token, action, userID string) bool {
	if token == "" || action == "" {
		return false
	}
	parts := strings.Split(token, tokenSeparator)
	if len(parts) != 2 {
		return false
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[0], "="))
	if err != nil {
		return false
	}
	var payload actionTokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}
	if payload.Nonce == "" {
		return false
	}
	expiresRaw := bytes.TrimSpace(payload.ExpiresAt)
	expiresAt, err := strconv.ParseInt(string(expiresRaw), 10, 64)
	if err != nil {
		return false
	}
	if expiresAt <= s.now().UnixMilli() {
		return false
	}

	return s.hmac.Verify(s.message(action, userID, strconv.FormatInt(expiresAt, 10), payload.Nonce), parts[1])
}

func (s *ActionTokenService) message(action, userID, expiresAt, nonce string) []byte {
	return s.hmac.CanonicalMessage(action, userID, s.productID, expiresAt, nonce)
}

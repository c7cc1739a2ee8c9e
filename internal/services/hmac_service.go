package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HMACService is the single place that signs and verifies gateway messages.
type HMACService struct {
	secret []byte
}

// NewHMACService creates a new HMAC signing service
func NewHMACService(secret string) *HMACService {
	return &HMACService{
		secret: []byte(secret),
	}
}

// Sign signs a message using HMAC-SHA256 and returns lowercase hex
func (s *HMACService) Sign(message []byte) string {
	return hex.EncodeToString(s.mac(message))
}

// Verify reports whether signatureHex is the MAC of message. Malformed hex
// yields false. The comparison is constant time over the decoded bytes.
func (s *HMACService) Verify(message []byte, signatureHex string) bool {
	if signatureHex == "" {
		return false
	}
	provided, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return hmac.Equal(provided, s.mac(message))
}

// CanonicalMessage joins parts with ':' in the order given.
func (s *HMACService) CanonicalMessage(parts ...string) []byte {
	return []byte(strings.Join(parts, ":"))
}

func (s *HMACService) mac(message []byte) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write(message)
	return h.Sum(nil)
}

package services

import (
	"net/http"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

// WebhookAuthenticator verifies webhook deliveries over the exact bytes received.
type WebhookAuthenticator struct {
	hmac *HMACService
}

func NewWebhookAuthenticator(hmacService *HMACService) *WebhookAuthenticator {
	return &WebhookAuthenticator{hmac: hmacService}
}

// VerifySignature checks signatureHex against rawBody. rawBody must be the
// unparsed request body; a re-serialized form will not verify.
func (a *WebhookAuthenticator) VerifySignature(rawBody []byte, signatureHex string) bool {
	signatureHex = strings.TrimSpace(signatureHex)
	if signatureHex == "" {
		return false
	}
	return a.hmac.Verify(rawBody, signatureHex)
}

// SignatureFromHeader returns the first x-signature value.
func SignatureFromHeader(h http.Header) string {
	if h == nil {
		return ""
	}
	if values := h.Values(SignatureHeader); len(values) > 0 {
		return values[0]
	}
	return SignatureFromValues(h)
}

// SignatureFromValues finds x-signature in a multi-value header map whose keys
// are not canonicalized. The first value wins.
func SignatureFromValues(h map[string][]string) string {
	for k, values := range h {
		if strings.EqualFold(k, SignatureHeader) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// SignatureFromMap finds x-signature in a flat header map, ignoring case.
func SignatureFromMap(h map[string]string) string {
	for k, v := range h {
		if strings.EqualFold(k, SignatureHeader) {
			return v
		}
	}
	return ""
}

package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/feedloop/paygate/internal/models"
)

const signatureParam = "signature="

// RedirectVerifier validates checkout-completion redirects signed by the
// billing platform over the full callback URL.
type RedirectVerifier struct {
	hmac     *HMACService
	proxyURL *url.URL
}

// NewRedirectVerifier creates a verifier. When proxyURL is non-empty the
// scheme, host and port of every verified URL are replaced with it, so the
// check runs against the public URL the platform signed rather than the
// internal address the request arrived on.
func NewRedirectVerifier(hmacService *HMACService, proxyURL string) (*RedirectVerifier, error) {
	v := &RedirectVerifier{hmac: hmacService}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy url %q must include scheme and host", proxyURL)
		}
		v.proxyURL = u
	}
	return v, nil
}

// Verify returns the parsed redirect when the signature is present and
// correct and all mandatory fields exist, nil otherwise.
func (v *RedirectVerifier) Verify(rawURL string) *models.RedirectInfo {
	normalized := strings.ReplaceAll(rawURL, "%20", "+")
	if v.proxyURL != nil {
		normalized = replaceOrigin(normalized, v.proxyURL)
	}

	signed, signature, ok := splitSignature(normalized)
	if !ok || signature == "" {
		return nil
	}
	if !v.hmac.Verify([]byte(signed), signature) {
		return nil
	}

	u, err := url.Parse(signed)
	if err != nil {
		return nil
	}
	return models.RedirectInfoFromQuery(u.Query())
}

// SignURL appends a signature parameter the way the platform does.
func (v *RedirectVerifier) SignURL(rawURL string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + signatureParam + v.hmac.Sign([]byte(rawURL))
}

// splitSignature removes the first signature parameter by slicing, keeping
// every other byte of the URL exactly as received. Only matches at a
// parameter boundary count, so values merely containing "signature=" are
// left alone.
func splitSignature(raw string) (signed, signature string, ok bool) {
	idx := firstParamIndex(raw)
	if idx < 0 {
		return "", "", false
	}
	valueStart := idx + 1 + len(signatureParam)
	rest := ""
	signature = raw[valueStart:]
	if end := strings.IndexByte(signature, '&'); end >= 0 {
		rest = signature[end+1:]
		signature = signature[:end]
	}
	if hash := strings.IndexByte(signature, '#'); hash >= 0 {
		signature = signature[:hash]
	}

	signed = raw[:idx]
	if rest != "" {
		signed += string(raw[idx]) + rest
	}
	return signed, signature, true
}

func firstParamIndex(raw string) int {
	q := strings.Index(raw, "?"+signatureParam)
	a := strings.Index(raw, "&"+signatureParam)
	switch {
	case q < 0:
		return a
	case a < 0:
		return q
	case q < a:
		return q
	default:
		return a
	}
}

func replaceOrigin(raw string, origin *url.URL) string {
	schemeEnd := strings.Index(raw, "://")
	if schemeEnd < 0 {
		return raw
	}
	rest := raw[schemeEnd+3:]
	pathStart := strings.IndexAny(rest, "/?#")
	if pathStart < 0 {
		return origin.Scheme + "://" + origin.Host
	}
	return origin.Scheme + "://" + origin.Host + rest[pathStart:]
}

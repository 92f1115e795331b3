package videosdk

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature or api key")
	ErrInvalidAPIKey    = errors.New("webhook api key mismatch")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks the api key header and the body signature.
func (c *Client) VerifyWebhook(body []byte, signature, apiKey string) error {
	signature = strings.TrimSpace(signature)
	apiKey = strings.TrimSpace(apiKey)
	if signature == "" || apiKey == "" {
		return ErrMissingSignature
	}
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(c.apiKey)) != 1 {
		return ErrInvalidAPIKey
	}
	want := Sign(body, c.apiSecret)
	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(want)) {
		return ErrInvalidSignature
	}
	return nil
}

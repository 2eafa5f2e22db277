package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw request body.
const SignatureHeader = "X-Paystack-Signature"

var ErrInvalidSignature = errors.New("paystack signature does not match payload")

// VerifyWebhookSignature checks a delivery against the provider's webhook secret.
func (p *Provider) VerifyWebhookSignature(payload []byte, signature string) error {
	if p == nil {
		return errors.New("paystack provider is not configured")
	}
	return VerifyWebhookSignature(payload, signature, p.webhookSecret)
}

// VerifyWebhookSignature validates a Paystack webhook signature header against the payload.
func VerifyWebhookSignature(payload []byte, signature, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return errors.New("paystack webhook secret is required")
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return errors.New("paystack signature header is missing")
	}

	decoded, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return ErrInvalidSignature
	}

	if !hmac.Equal(decoded, computeHMACSHA512(payload, []byte(secret))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the signature Paystack would send for payload.
func Sign(payload []byte, secret string) string {
	return hex.EncodeToString(computeHMACSHA512(payload, []byte(strings.TrimSpace(secret))))
}

func computeHMACSHA512(message, key []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

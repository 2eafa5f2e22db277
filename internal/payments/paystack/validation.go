package paystack

import "strings"

const (
	// SecretKeyPrefixTest is the Paystack test-mode secret key prefix.
	SecretKeyPrefixTest = "sk_test_"
	// SecretKeyPrefixLive is the Paystack live-mode secret key prefix.
	SecretKeyPrefixLive = "sk_live_"
	// PublicKeyPrefix is shared by test and live public keys.
	PublicKeyPrefix = "pk_"
)

func hasAllowedPrefix(value string, prefixes ...string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}

	return false
}

// IsSecretKey reports whether the value looks like a Paystack secret key.
func IsSecretKey(value string) bool {
	return hasAllowedPrefix(value, SecretKeyPrefixTest, SecretKeyPrefixLive)
}

// IsTestKey reports whether the key belongs to test mode.
func IsTestKey(value string) bool {
	return hasAllowedPrefix(value, SecretKeyPrefixTest)
}

// IsPublicKey reports whether the value looks like a Paystack public key.
func IsPublicKey(value string) bool {
	return hasAllowedPrefix(value, PublicKeyPrefix)
}

package sec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignCookie returns the cookie payload for value: the value itself followed
// by a url-safe base64 HMAC-SHA256 signature under secret.
func SignCookie(secret, value string) string {
	return value + "." + signature(secret, value)
}

// VerifyCookie extracts the value from a payload produced by [SignCookie].
// It returns false for a missing, malformed, or badly signed payload.
func VerifyCookie(secret, payload string) (string, bool) {
	value, sig, found := strings.Cut(payload, ".")
	if !found || value == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(signature(secret, value))) {
		return "", false
	}
	return value, true
}

func signature(secret, value string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

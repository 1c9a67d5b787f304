package sec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const sessionKeyLen = 32

// NewSessionKey returns an unguessable session token drawn from the
// cryptographically secure source, url-safe base64 encoded.
func NewSessionKey() (string, error) {
	raw := make([]byte, sessionKeyLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate session key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

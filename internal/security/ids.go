package security

import (
	"crypto/rand"
	"encoding/base64"
)

// NewID returns 128 random bits, base64url encoded. Used as the opaque
// session id for server-side sessions.
func NewID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

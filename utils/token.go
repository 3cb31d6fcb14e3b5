// utils/token.go
package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateConfirmationToken returns a high-entropy URL-safe token used as the
// single-use credential on reminder confirmation links.
func GenerateConfirmationToken() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}

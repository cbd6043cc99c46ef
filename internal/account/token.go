package account

import (
	"crypto/rand"
	"encoding/base64"
)

// generateRandomToken creates a cryptographically secure opaque token. The
// value carries no structure; it is only ever compared for equality.
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

package user

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const pbkdf2Iterations = 100000

// HashPassword derives a PBKDF2-HMAC-SHA256 hash with a fresh random
// salt, stored as "salt$hexdigest".
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hashWithSalt(password, hex.EncodeToString(salt)), nil
}

// VerifyPassword checks a password against a stored "salt$hexdigest"
// hash in constant time.
func VerifyPassword(password, stored string) bool {
	salt, _, ok := strings.Cut(stored, "$")
	if !ok {
		return false
	}
	return hmac.Equal([]byte(hashWithSalt(password, salt)), []byte(stored))
}

func hashWithSalt(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, sha256.Size, sha256.New)
	return salt + "$" + hex.EncodeToString(key)
}

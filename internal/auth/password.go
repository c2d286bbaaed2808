package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
)

// saltSize is the number of random bytes mixed into every password hash.
const saltSize = 16

// generateSalt returns fresh random salt bytes.
func generateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// hashPassword computes SHA-256(salt ‖ password). The digest layout is part
// of the persisted account format and cannot change without invalidating
// existing account files.
func hashPassword(salt []byte, password string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return h.Sum(nil)
}

// hashEqual compares two digests in constant time.
func hashEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

package password

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt cost for user and master passwords
	DefaultCost = 12

	// MinLength applies to user passwords and the master password alike
	MinLength = 8
)

// Hash bcrypt-hashes a plaintext password
func Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify reports whether the plaintext matches the bcrypt hash
func Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashToken SHA-256-hashes a refresh token for storage, so a leaked
// tokens table cannot be replayed
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidatePassword reports whether a candidate password is acceptable
func ValidatePassword(password string) bool {
	return len(password) >= MinLength
}

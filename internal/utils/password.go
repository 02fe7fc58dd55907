package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies credentials with bcrypt.  Cost only
// affects computation time; tests run with bcrypt.MinCost.
type Hasher struct {
	Cost int
}

// Hash returns the bcrypt hash of plain.  bcrypt salts internally, so
// two calls with the same input produce different hashes.
func (h Hasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify safely compares a bcrypt hash and a plaintext candidate.
func (h Hasher) Verify(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// HashToken returns the SHA-256 hash of a raw reset or verification
// token as a hex string.  Tokens exceed bcrypt's 72-byte input limit,
// and storing only a digest still keeps a stolen database row from
// being redeemed directly.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// VerifyToken compares a stored token digest with a presented raw
// token in constant time.
func VerifyToken(storedHash, raw string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(HashToken(raw))) == 1
}

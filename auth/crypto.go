package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// Hash hashes a plaintext secret at the given bcrypt cost. Hashing happens at
// the write boundary, plaintext is never persisted.
func Hash(plaintext string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether the plaintext matches the stored hash.
func Compare(plaintext string, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

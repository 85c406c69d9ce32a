package password

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen    = 32
	hashLen    = 64
	iterations = 4096
)

// Hash derives a keyed hash of password with a freshly generated random salt.
// The same password and salt always produce the same hash.
func Hash(password string) (hash, salt []byte, err error) {
	salt = make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("generate salt: %w", err)
	}
	hash = pbkdf2.Key([]byte(password), salt, iterations, hashLen, sha512.New)
	return hash, salt, nil
}

// Verify recomputes the hash with the stored salt and compares it against the
// stored hash over its full length.
func Verify(password string, hash, salt []byte) bool {
	computed := pbkdf2.Key([]byte(password), salt, iterations, hashLen, sha512.New)
	return subtle.ConstantTimeCompare(computed, hash) == 1
}

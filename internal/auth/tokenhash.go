// Package auth provides authentication and authorization mechanisms for the
// record repository API.
//
// This file implements API-key secret generation and hashing. bcrypt is
// used rather than Argon2id (see password.go); its fixed, moderate cost
// keeps a secret check cheap while still resisting offline brute force.
// The auth middleware does not check this hash: for kind=apiKey tokens it
// loads the key row and checks its state only.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// GenerateAPIKeySecret returns a fresh 384-bit random secret and its bcrypt
// hash. The plaintext secret is returned to the caller exactly once; only
// the hash is persisted.
func GenerateAPIKeySecret() (plain string, hash string, err error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate API key secret: %w", err)
	}
	plain = base64.URLEncoding.EncodeToString(buf)

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash API key secret: %w", err)
	}
	return plain, string(hashedBytes), nil
}

// VerifyAPIKeySecret reports whether plain matches the stored bcrypt hash.
func VerifyAPIKeySecret(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

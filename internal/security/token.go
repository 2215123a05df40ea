package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// tokenRandomBytes is the entropy of the opaque part of a token.
	tokenRandomBytes = 32
	// tokenSaltBytes is the per-token salt length.
	tokenSaltBytes = 16
)

// ErrMalformedToken indicates a token that does not follow the
// subject.secret layout.
var ErrMalformedToken = errors.New("security: malformed token")

// GenerateToken mints an opaque bearer token bound to a subject ID.
// The plaintext is "<subject>.<secret>" so the subject can be extracted
// for an indexed lookup without scanning stored hashes. Only the salted
// hash of the full plaintext should ever be persisted.
func GenerateToken(subject string) (plaintext, hash, salt string, err error) {
	subject = strings.TrimSpace(subject)
	if subject == "" || strings.Contains(subject, ".") {
		return "", "", "", fmt.Errorf("security: invalid token subject %q", subject)
	}

	raw := make([]byte, tokenRandomBytes)
	if _, errRead := rand.Read(raw); errRead != nil {
		return "", "", "", fmt.Errorf("security: token entropy: %w", errRead)
	}
	plaintext = subject + "." + base64.RawURLEncoding.EncodeToString(raw)

	salt, err = newTokenSalt()
	if err != nil {
		return "", "", "", err
	}
	return plaintext, HashToken(plaintext, salt), salt, nil
}

// TokenSubject extracts the subject ID embedded in a token plaintext.
func TokenSubject(plaintext string) (string, error) {
	subject, _, found := strings.Cut(strings.TrimSpace(plaintext), ".")
	if !found || subject == "" {
		return "", ErrMalformedToken
	}
	return subject, nil
}

// HashToken computes the salted SHA-256 digest of a token plaintext.
func HashToken(plaintext, salt string) string {
	sum := sha256.Sum256([]byte(salt + plaintext))
	return hex.EncodeToString(sum[:])
}

// VerifyToken compares a token plaintext against a stored salted hash
// in constant time.
func VerifyToken(plaintext, hash, salt string) bool {
	if hash == "" {
		return false
	}
	computed := HashToken(plaintext, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// GenerateRandomString returns n bytes of entropy as a URL-safe string.
func GenerateRandomString(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("security: random string entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func newTokenSalt() (string, error) {
	raw := make([]byte, tokenSaltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("security: salt entropy: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

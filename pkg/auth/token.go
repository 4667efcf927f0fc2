package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// SecretPrefix identifies client application secrets
	SecretPrefix = "idn_"
	// SecretLength is the number of random bytes (32 bytes = 256 bits)
	SecretLength = 32
	// SessionIDLength is the number of random bytes in a session id
	SessionIDLength = 24
)

// SecretGenerator generates session ids and client secrets
type SecretGenerator struct{}

// NewSecretGenerator creates a new secret generator
func NewSecretGenerator() *SecretGenerator {
	return &SecretGenerator{}
}

// GenerateSecret creates a new client secret and its hash.
// Format: idn_<base64url(32 random bytes)>
func (g *SecretGenerator) GenerateSecret() (secret string, secretHash string, err error) {
	encoded, err := randomString(SecretLength)
	if err != nil {
		return "", "", err
	}
	secret = SecretPrefix + encoded
	return secret, g.HashSecret(secret), nil
}

// GenerateSessionID creates a URL-safe random session id
func (g *SecretGenerator) GenerateSessionID() (string, error) {
	return randomString(SessionIDLength)
}

// HashSecret computes the SHA256 hash of a secret for storage and lookup
func (g *SecretGenerator) HashSecret(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

// VerifySecret compares secret against a stored hash in constant time
func (g *SecretGenerator) VerifySecret(secret, secretHash string) bool {
	return subtle.ConstantTimeCompare([]byte(g.HashSecret(secret)), []byte(secretHash)) == 1
}

// ValidateSecretFormat checks if a secret has the correct format
func (g *SecretGenerator) ValidateSecretFormat(secret string) error {
	if !strings.HasPrefix(secret, SecretPrefix) {
		return fmt.Errorf("secret must start with %q", SecretPrefix)
	}

	encodedPart := strings.TrimPrefix(secret, SecretPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("secret is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid secret encoding: %w", err)
	}

	return nil
}

func randomString(n int) (string, error) {
	randomBytes := make([]byte, n)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

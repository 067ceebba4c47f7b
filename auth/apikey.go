package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// APIKeyPrefix marks organization API keys so they are recognisable in logs and secret scanners
const APIKeyPrefix = "comp_"

// prefixLength is the number of leading characters stored for display
const prefixLength = 12

// GeneratedAPIKey is returned once on creation; only Hash is persisted
type GeneratedAPIKey struct {
	Plaintext string
	Prefix    string
	Hash      string
}

// GenerateAPIKey creates a random organization API key
func GenerateAPIKey() (*GeneratedAPIKey, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}
	plaintext := APIKeyPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return &GeneratedAPIKey{
		Plaintext: plaintext,
		Prefix:    plaintext[:prefixLength],
		Hash:      HashAPIKey(plaintext),
	}, nil
}

// HashAPIKey returns the hex sha256 of a presented key
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// LooksLikeAPIKey reports whether a value carries the API key prefix
func LooksLikeAPIKey(value string) bool {
	return strings.HasPrefix(value, APIKeyPrefix) && len(value) > prefixLength
}

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// APIKeyPrefix identifies Folio tenant API keys
	APIKeyPrefix = "folio_"
	// apiKeyBytes is the number of random bytes per key (256 bits)
	apiKeyBytes = 32
)

// GenerateAPIKey mints a long-lived tenant API key.
// Format: folio_<base64url(32 random bytes)>. The plaintext key is returned
// exactly once; only the SHA-256 hash and a display prefix are stored.
func GenerateAPIKey() (key string, keyHash string, keyPrefix string, err error) {
	randomBytes := make([]byte, apiKeyBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullKey := APIKeyPrefix + encoded

	prefix := APIKeyPrefix
	if len(encoded) >= 8 {
		prefix = APIKeyPrefix + encoded[:8]
	}

	return fullKey, HashCredential(fullKey), prefix, nil
}

// ValidateAPIKeyFormat checks if a key has the correct shape before any
// store lookup is spent on it
func ValidateAPIKeyFormat(key string) error {
	if !strings.HasPrefix(key, APIKeyPrefix) {
		return fmt.Errorf("key must start with %q", APIKeyPrefix)
	}

	encoded := strings.TrimPrefix(key, APIKeyPrefix)
	if encoded == "" {
		return fmt.Errorf("key is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid key encoding: %w", err)
	}

	return nil
}

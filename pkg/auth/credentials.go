package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// API key header scheme: "Authorization: tenants API-Key <key>".
const (
	apiKeyCollection = "tenants"
	apiKeyScheme     = "API-Key"
)

// HashCredential computes the SHA-256 hex digest under which session tokens
// and tenant API keys are stored. Plaintext credentials never reach a store.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// ParseAPIKeyHeader extracts the tenant API key from an Authorization header
// value. Returns "" when the header does not carry the tenant API-Key scheme;
// session-bearer and other schemes are someone else's problem.
func ParseAPIKeyHeader(header string) string {
	parts := strings.SplitN(header, " ", 3)
	if len(parts) != 3 {
		return ""
	}
	if parts[0] != apiKeyCollection || parts[1] != apiKeyScheme || parts[2] == "" {
		return ""
	}
	return parts[2]
}

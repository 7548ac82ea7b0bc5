// Package signature implements the HMAC request-signing handshake used for
// server-to-server tenant calls. A signer mints a header bag binding a device,
// a one-shot request id, a millisecond timestamp and the client user agent to
// an HMAC-SHA256 token; the verifier recomputes the token byte-exactly and
// enforces a validity window.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeToken computes the request token: HMAC-SHA256 over the concatenation
// deviceID+requestID+timestampMs+userAgent, keyed by secret, hex encoded.
// Deterministic; signer and verifier run the identical computation.
func ComputeToken(deviceID, requestID, timestampMs, secret, userAgent string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(deviceID))
	mac.Write([]byte(requestID))
	mac.Write([]byte(timestampMs))
	mac.Write([]byte(userAgent))
	return hex.EncodeToString(mac.Sum(nil))
}

// tokensEqual compares two hex tokens in constant time.
func tokensEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

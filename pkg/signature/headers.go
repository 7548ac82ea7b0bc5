package signature

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// Signature header names. Lookup through http.Header is case-insensitive.
const (
	HeaderDeviceID  = "X-Device-Id"
	HeaderRequestID = "X-Request-Id"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderUserAgent = "X-User-Agent"
)

var (
	hexTokenRe  = regexp.MustCompile(`^[0-9a-f]{64}$`)
	timestampRe = regexp.MustCompile(`^[0-9]{13}$`)
)

// Headers is the stateless five-field signature bag. It is produced per
// outgoing request and discarded after a single verification.
type Headers struct {
	DeviceID  string `json:"device_id"`
	RequestID string `json:"request_id"`
	Signature string `json:"signature"`
	Timestamp string `json:"timestamp"`
	UserAgent string `json:"user_agent"`
}

// FromHTTP extracts the signature bag from an HTTP header set.
func FromHTTP(h http.Header) Headers {
	return Headers{
		DeviceID:  h.Get(HeaderDeviceID),
		RequestID: h.Get(HeaderRequestID),
		Signature: h.Get(HeaderSignature),
		Timestamp: h.Get(HeaderTimestamp),
		UserAgent: h.Get(HeaderUserAgent),
	}
}

// Apply sets the signature headers on an outgoing HTTP header set.
func (s Headers) Apply(h http.Header) {
	h.Set(HeaderDeviceID, s.DeviceID)
	h.Set(HeaderRequestID, s.RequestID)
	h.Set(HeaderSignature, s.Signature)
	h.Set(HeaderTimestamp, s.Timestamp)
	h.Set(HeaderUserAgent, s.UserAgent)
}

// Valid reports whether every field matches its schema: RFC-4122 UUIDs for the
// ids, 64 lowercase hex chars for the signature, a 13-digit decimal string for
// the epoch-millisecond timestamp. The user agent is free-form but required
// since it feeds the HMAC input.
func (s Headers) Valid() bool {
	if _, err := uuid.Parse(s.DeviceID); err != nil {
		return false
	}
	if _, err := uuid.Parse(s.RequestID); err != nil {
		return false
	}
	if !hexTokenRe.MatchString(s.Signature) {
		return false
	}
	if !timestampRe.MatchString(s.Timestamp) {
		return false
	}
	return s.UserAgent != ""
}

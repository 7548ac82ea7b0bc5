package signature

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the maximum accepted age of a signed request.
const DefaultTTL = 300_000 * time.Millisecond

// Reason classifies a verification failure. Failures are values, never errors:
// a bad signature is an expected input, not an exceptional condition.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonMalformed Reason = "malformed_signature"
	ReasonExpired   Reason = "expired_signature"
	ReasonInvalid   Reason = "invalid_signature"
	// ReasonReplayed is only produced when a replay cache is configured; the
	// base protocol relies solely on the TTL window.
	ReasonReplayed Reason = "replayed_signature"
)

// Result is the outcome of one verification.
type Result struct {
	OK     bool
	Reason Reason
}

func success() Result              { return Result{OK: true} }
func failure(reason Reason) Result { return Result{Reason: reason} }

// Generate mints a fresh signature bag for an outgoing request: a new UUID
// request id, the current epoch-millisecond timestamp, and the token computed
// over all four inputs.
func Generate(deviceID, secret, userAgent string) Headers {
	return GenerateAt(deviceID, secret, userAgent, time.Now())
}

// GenerateAt is Generate with an explicit clock, for tests and batch signing.
func GenerateAt(deviceID, secret, userAgent string, now time.Time) Headers {
	requestID := uuid.NewString()
	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	return Headers{
		DeviceID:  deviceID,
		RequestID: requestID,
		Signature: ComputeToken(deviceID, requestID, timestamp, secret, userAgent),
		Timestamp: timestamp,
		UserAgent: userAgent,
	}
}

// Verifier checks signature bags against a shared secret and a validity window.
// The zero TTL falls back to DefaultTTL. Verification is pure except for the
// optional replay cache; with no cache configured, repeated calls with
// identical headers yield identical results.
type Verifier struct {
	ttl    time.Duration
	replay ReplayCache
	now    func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithTTL overrides the validity window.
func WithTTL(ttl time.Duration) VerifierOption {
	return func(v *Verifier) { v.ttl = ttl }
}

// WithReplayCache enables one-shot request ids backed by the given cache.
func WithReplayCache(cache ReplayCache) VerifierOption {
	return func(v *Verifier) { v.replay = cache }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a verifier with the default TTL and no replay cache.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.ttl <= 0 {
		v.ttl = DefaultTTL
	}
	return v
}

// TTL returns the configured validity window.
func (v *Verifier) TTL() time.Duration { return v.ttl }

// Verify checks the bag against the secret:
//
//  1. schema-validate all five fields;
//  2. reject requests older than the TTL (future timestamps are accepted, so
//     bounded clock skew on the signer side does not reject valid requests);
//  3. recompute the token with the supplied secret and compare in constant time;
//  4. with a replay cache configured, reject a request id already seen inside
//     the window.
func (v *Verifier) Verify(ctx context.Context, h Headers, secret string) Result {
	if !h.Valid() {
		return failure(ReasonMalformed)
	}

	ts, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return failure(ReasonMalformed)
	}
	age := v.now().UnixMilli() - ts
	if age > v.ttl.Milliseconds() {
		return failure(ReasonExpired)
	}

	expected := ComputeToken(h.DeviceID, h.RequestID, h.Timestamp, secret, h.UserAgent)
	if !tokensEqual(expected, h.Signature) {
		return failure(ReasonInvalid)
	}

	if v.replay != nil {
		seen, err := v.replay.Seen(ctx, h.RequestID)
		if err != nil {
			// A cache outage must not take signed traffic down with it; the
			// TTL window still bounds replays, as in the base protocol.
			return success()
		}
		if seen {
			return failure(ReasonReplayed)
		}
	}

	return success()
}

// Package origin decides whether a request arrived over an external HTTP
// transport or through an in-process call.
//
// The discriminator is the transport-mandated Host header: every compliant
// HTTP/1.1 server requires it on externally-terminated requests and no
// conforming client can omit it, while a same-process call has no HTTP
// transport and therefore no such header. An attacker who fabricates the
// header is, by definition, an external caller and is routed into signature
// verification; only a genuine same-process caller benefits from the skip.
package origin

import "net/http"

// Origin is the single-bit trust classification of a request.
type Origin int

const (
	// Internal is a same-process call with no HTTP transport.
	Internal Origin = iota
	// External is a request terminated by the HTTP server.
	External
)

func (o Origin) String() string {
	if o == External {
		return "external"
	}
	return "internal"
}

// Classify inspects the request once; the result is stored on the request
// context and never re-evaluated mid-flight. A nil request is an in-process
// call by construction.
func Classify(r *http.Request) Origin {
	if r == nil {
		return Internal
	}
	// net/http promotes the Host header onto the request; check both so a
	// hand-built request classifies the same way as a served one.
	if r.Host != "" || r.Header.Get("Host") != "" {
		return External
	}
	return Internal
}

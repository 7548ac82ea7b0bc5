package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// MaxBodySize limits request bodies to 1MB
const MaxBodySize = 1 << 20

// DecodeJSON decodes a JSON request body into the given value
func DecodeJSON(r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodySize)
	defer io.Copy(io.Discard, body)

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// Cookie returns the value of the named cookie, or "" when absent
func Cookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

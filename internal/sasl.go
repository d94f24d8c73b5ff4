// Package internal holds helpers shared across the engine's own
// subpackages that have no business being importable outside it.
package internal

import (
	"encoding/base64"
)

// EncodeSASL renders a SASL response for the wire, per RFC 4959: an empty
// (but non-nil) response is sent as a bare "=" rather than an empty
// base64 string, since the two are indistinguishable otherwise.
func EncodeSASL(b []byte) string {
	if len(b) == 0 {
		return "="
	}
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeSASL(s string) ([]byte, error) {
	if s == "=" {
		// sasl.Client treats nil as no challenge/response, so return a
		// non-nil empty byte slice instead.
		return []byte{}, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

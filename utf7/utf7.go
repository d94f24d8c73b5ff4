// Modified UTF-7 encoding defined in RFC 3501 section 5.1.3
package utf7

import (
	"golang.org/x/text/encoding"
)

const (
	min = 0x20 // Minimum self-representing UTF-7 value
	max = 0x7E // Maximum self-representing UTF-7 value

	repl = '�' // Unicode replacement code point
)

// Encoding is the modified UTF-7 text encoding, satisfying
// golang.org/x/text/encoding.Encoding so mailbox names transcode with the
// same NewDecoder().String()/NewEncoder().String() idiom as any other
// charset in the x/text ecosystem.
var Encoding encoding.Encoding = utf7Encoding{}

type utf7Encoding struct{}

func (utf7Encoding) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &decoder{}}
}

func (utf7Encoding) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: &encoder{}}
}

// Encode is a convenience wrapper for encoding a whole mailbox name.
func Encode(s string) (string, error) {
	return Encoding.NewEncoder().String(s)
}

// Decode is a convenience wrapper for decoding a whole mailbox name.
func Decode(s string) (string, error) {
	return Encoding.NewDecoder().String(s)
}

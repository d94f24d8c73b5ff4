package utf7

import (
	"unicode/utf16"

	"golang.org/x/text/transform"
)

// decoder implements transform.Transformer for modified UTF-7: ASCII
// passes through; '&' begins a shift sequence of restricted-alphabet
// base64 characters ending in '-', decoding to a run of UTF-16 code
// units; "&-" decodes to a literal '&'.
type decoder struct{}

func (d *decoder) Reset() {}

func (d *decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if c != '&' {
			if c < min || c > max {
				return nDst, nSrc, errInvalidByte(c)
			}
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = c
			nDst++
			nSrc++
			continue
		}

		// Shift sequence: scan for its terminating '-'.
		end := nSrc + 1
		for end < len(src) && isB64(src[end]) {
			end++
		}
		if end >= len(src) {
			if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			return nDst, nSrc, errUnterminatedShift
		}
		if src[end] != '-' {
			return nDst, nSrc, errInvalidShift
		}

		runLen := end - (nSrc + 1)
		var decoded []byte
		if runLen == 0 {
			decoded = []byte{'&'}
		} else {
			units, derr := decodeUnits(src[nSrc+1 : end])
			if derr != nil {
				return nDst, nSrc, derr
			}
			runes := utf16.Decode(units)
			decoded = []byte(string(runes))
		}
		if nDst+len(decoded) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		copy(dst[nDst:], decoded)
		nDst += len(decoded)
		nSrc = end + 1

		// A shift sequence followed directly by another is a "null
		// shift", forbidden by RFC 3501 since it would have been
		// shorter to keep the first sequence open. A literal "&-"
		// right after a shift is not a second shift and is allowed.
		if runLen > 0 && nSrc+1 < len(src) && src[nSrc] == '&' && src[nSrc+1] != '-' {
			return nDst, nSrc, errNullShift
		}
	}
	return nDst, nSrc, nil
}

func isB64(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '+' || c == ',':
		return true
	}
	return false
}

// decodeUnits decodes a shift sequence's base64 body into uint16 UTF-16
// code units by accumulating 6 bits per character into a bit buffer and
// draining it 16 bits at a time; the body's bit length must be a
// multiple of 16, and any bits left over after the last full unit must
// be zero, matching RFC 3501's "padding not stripped" / "one byte
// short" failure modes.
func decodeUnits(b []byte) ([]uint16, error) {
	var bitBuf uint32
	var nBits uint
	units := make([]uint16, 0, len(b)/3)
	for _, c := range b {
		v := base64Value(c)
		if v < 0 {
			return nil, errBadBase64
		}
		bitBuf = bitBuf<<6 | uint32(v)
		nBits += 6
		if nBits >= 16 {
			nBits -= 16
			units = append(units, uint16(bitBuf>>nBits))
		}
	}
	if bitBuf&((1<<nBits)-1) != 0 {
		return nil, errOddByteLength
	}
	if nBits >= 6 {
		// a full character's worth of bits remains undrained; that can
		// only happen for an input length this loop shouldn't produce,
		// treated defensively as malformed.
		return nil, errOddByteLength
	}
	if len(units) == 0 {
		return nil, errOddByteLength
	}
	if !validSurrogates(units) {
		return nil, errBadSurrogate
	}
	// Printable ASCII must represent itself; encoding it inside a shift
	// is rejected.
	for _, u := range units {
		if u >= min && u <= max {
			return nil, errInvalidShift
		}
	}
	return units, nil
}

func base64Value(c byte) int {
	switch {
	case c >= 'A' && c <= 'Z':
		return int(c - 'A')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 26
	case c >= '0' && c <= '9':
		return int(c-'0') + 52
	case c == '+':
		return 62
	case c == ',':
		return 63
	}
	return -1
}

func validSurrogates(units []uint16) bool {
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u >= 0xD800 && u <= 0xDBFF: // high surrogate
			if i+1 >= len(units) || units[i+1] < 0xDC00 || units[i+1] > 0xDFFF {
				return false
			}
			i++
		case u >= 0xDC00 && u <= 0xDFFF: // low surrogate without a preceding high one
			return false
		}
	}
	return true
}

type errInvalidByte byte

func (e errInvalidByte) Error() string { return "utf7: invalid byte in input" }

type decodeErr string

func (e decodeErr) Error() string { return string(e) }

const (
	errUnterminatedShift = decodeErr("utf7: unterminated shift sequence")
	errInvalidShift      = decodeErr("utf7: invalid character in shift sequence")
	errNullShift         = decodeErr("utf7: null shift sequence")
	errOddByteLength     = decodeErr("utf7: shift sequence decodes to an odd number of bytes")
	errBadBase64         = decodeErr("utf7: invalid base64 in shift sequence")
	errBadSurrogate      = decodeErr("utf7: invalid surrogate pair")
)

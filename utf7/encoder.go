package utf7

import (
	"unicode/utf16"

	"golang.org/x/text/transform"
)

// encoder implements transform.Transformer for modified UTF-7: runs of
// printable ASCII pass through unchanged; '&' is escaped to "&-"; every
// other rune is shifted into a base64 run bracketed by '&' and '-'.
type encoder struct{}

func (e *encoder) Reset() {}

func (e *encoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r, size := decodeRune(src[nSrc:], atEOF)
		if size == 0 {
			return nDst, nSrc, transform.ErrShortSrc
		}

		if r == '&' {
			if nDst+2 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = '&'
			dst[nDst+1] = '-'
			nDst += 2
			nSrc += size
			continue
		}
		if r >= min && r <= max {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = byte(r)
			nDst++
			nSrc += size
			continue
		}

		// Collect a run of consecutive non-ASCII runes and shift them
		// together into one base64 sequence, since splitting every rune
		// into its own "&...-" would be valid but needlessly verbose.
		runStart := nSrc
		var units []uint16
		for nSrc < len(src) {
			r2, size2 := decodeRune(src[nSrc:], atEOF)
			if size2 == 0 {
				return nDst, nSrc, transform.ErrShortSrc
			}
			if r2 == '&' || (r2 >= min && r2 <= max) {
				break
			}
			units = append(units, utf16.Encode([]rune{r2})...)
			nSrc += size2
		}
		encoded := encodeUnits(units)
		if nDst+len(encoded)+2 > len(dst) {
			nSrc = runStart
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = '&'
		nDst++
		copy(dst[nDst:], encoded)
		nDst += len(encoded)
		dst[nDst] = '-'
		nDst++
	}
	return nDst, nSrc, nil
}

// decodeRune decodes one UTF-8 rune from b, returning (replacement, 0)
// if b holds an incomplete sequence and more input may still arrive.
func decodeRune(b []byte, atEOF bool) (rune, int) {
	r, size := rune(b[0]), 1
	if b[0] < 0x80 {
		return r, size
	}
	n := utf8RuneLen(b)
	if n > len(b) {
		if !atEOF {
			return 0, 0
		}
		n = len(b)
	}
	return decodeUTF8(b[:n])
}

func utf8RuneLen(b []byte) int {
	switch {
	case b[0]&0xE0 == 0xC0:
		return 2
	case b[0]&0xF0 == 0xE0:
		return 3
	case b[0]&0xF8 == 0xF0:
		return 4
	}
	return 1
}

func decodeUTF8(b []byte) (rune, int) {
	switch len(b) {
	case 2:
		return rune(b[0]&0x1F)<<6 | rune(b[1]&0x3F), 2
	case 3:
		return rune(b[0]&0x0F)<<12 | rune(b[1]&0x3F)<<6 | rune(b[2]&0x3F), 3
	case 4:
		return rune(b[0]&0x07)<<18 | rune(b[1]&0x3F)<<12 | rune(b[2]&0x3F)<<6 | rune(b[3]&0x3F), 4
	}
	return rune(repl), 1
}

// encodeUnits packs UTF-16 code units 6 bits at a time into the modified
// base64 alphabet, matching decodeUnits' inverse bit buffer.
func encodeUnits(units []uint16) []byte {
	var bitBuf uint32
	var nBits uint
	out := make([]byte, 0, (len(units)*16+5)/6)
	for _, u := range units {
		bitBuf = bitBuf<<16 | uint32(u)
		nBits += 16
		for nBits >= 6 {
			nBits -= 6
			out = append(out, base64Char((bitBuf>>nBits)&0x3F))
		}
	}
	if nBits > 0 {
		out = append(out, base64Char((bitBuf<<(6-nBits))&0x3F))
	}
	return out
}

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,"

func base64Char(v uint32) byte { return alphabet[v] }

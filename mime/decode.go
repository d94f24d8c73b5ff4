// Package mime decodes MIME part payloads according to their transfer
// encoding, the way the engine's FetchMessagePart task requires: quoted-
// printable and base64 are decoded, 7bit/8bit/binary pass through
// unchanged, and an unrecognized encoding passes through with a warning
// rather than failing the fetch.
package mime

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/trojita/goimap-engine/logging"
)

// DecodeTransferEncoding decodes data per the Content-Transfer-Encoding
// name enc, as named in a part's BODYSTRUCTURE. The quoted-printable and
// base64 codecs are a level below what emersion/go-message exposes (its
// decoder operates on a whole entity's io.Reader, not a bare byte slice
// already split out of a FETCH response), so this layer goes straight to
// the standard library codecs the rest of the ecosystem builds on too.
func DecodeTransferEncoding(enc string, data []byte, log *logging.Logger) []byte {
	switch strings.ToLower(enc) {
	case "quoted-printable":
		out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(data)))
		if err != nil && log != nil {
			log.Warnf("mime: partial quoted-printable decode: %v", err)
		}
		return out
	case "base64":
		out, err := base64.StdEncoding.DecodeString(stripWhitespace(string(data)))
		if err != nil {
			if log != nil {
				log.Warnf("mime: base64 decode failed, passing through: %v", err)
			}
			return data
		}
		return out
	case "7bit", "8bit", "binary", "":
		return data
	default:
		if log != nil {
			log.Warnf("mime: unknown transfer encoding %q, passing through", enc)
		}
		return data
	}
}

func stripWhitespace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// DecodeHeaderWord decodes RFC 2047 encoded-words such as
// "=?UTF-8?Q?Hi?=" with the standard library's mime.WordDecoder, whose
// charsets are looked up through golang.org/x/text; envelope fields arrive already tokenized from the wire, so
// this is applied per displayed field rather than over a raw header line.
func DecodeHeaderWord(s string) string {
	dec := newWordDecoder()
	if decoded, err := dec.DecodeHeader(s); err == nil {
		return decoded
	}
	return s
}

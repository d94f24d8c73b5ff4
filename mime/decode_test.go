package mime_test

import (
	"testing"

	"github.com/trojita/goimap-engine/mime"
	"github.com/stretchr/testify/assert"
)

func TestDecodeTransferEncodingQuotedPrintable(t *testing.T) {
	out := mime.DecodeTransferEncoding("quoted-printable", []byte("caf=C3=A9"), nil)
	assert.Equal(t, "café", string(out))
}

func TestDecodeTransferEncodingBase64(t *testing.T) {
	out := mime.DecodeTransferEncoding("BASE64", []byte("aGVsbG8=\r\n"), nil)
	assert.Equal(t, "hello", string(out))
}

func TestDecodeTransferEncodingBase64InvalidPassesThrough(t *testing.T) {
	in := []byte("not valid base64!!")
	out := mime.DecodeTransferEncoding("base64", in, nil)
	assert.Equal(t, in, out)
}

func TestDecodeTransferEncodingPassthrough(t *testing.T) {
	for _, enc := range []string{"7bit", "8bit", "binary", ""} {
		in := []byte("raw bytes")
		out := mime.DecodeTransferEncoding(enc, in, nil)
		assert.Equal(t, in, out)
	}
}

func TestDecodeTransferEncodingUnknownPassesThrough(t *testing.T) {
	in := []byte("raw bytes")
	out := mime.DecodeTransferEncoding("x-unknown", in, nil)
	assert.Equal(t, in, out)
}

func TestDecodeHeaderWord(t *testing.T) {
	assert.Equal(t, "Hi", mime.DecodeHeaderWord("=?UTF-8?Q?Hi?="))
	assert.Equal(t, "plain text", mime.DecodeHeaderWord("plain text"))
}

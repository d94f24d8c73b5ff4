package mime

import (
	"io"
	stdmime "mime"

	"golang.org/x/text/encoding/htmlindex"
)

func newWordDecoder() *stdmime.WordDecoder {
	return &stdmime.WordDecoder{CharsetReader: charsetReader}
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return input, nil
	}
	return enc.NewDecoder().Reader(input), nil
}

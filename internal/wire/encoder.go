package wire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/trojita/goimap-engine/utf7"
)

// Encoder writes IMAP commands. Most methods defer error reporting until
// CRLF is called, so calls can be chained.
type Encoder struct {
	// LiteralPlus enables the LITERAL+ extension: all literals are sent
	// non-synchronizing, without waiting for a "+ " continuation.
	LiteralPlus bool
	// NewContinuationRequest, when LiteralPlus is false, is called once per
	// synchronizing literal to obtain a channel that is closed once the
	// server's continuation request has been read off the wire.
	NewContinuationRequest func() <-chan error

	w       *bufio.Writer
	err     error
	literal bool
}

func NewEncoder(w *bufio.Writer) *Encoder {
	return &Encoder{w: w}
}

func (enc *Encoder) setErr(err error) {
	if enc.err == nil {
		enc.err = err
	}
}

func (enc *Encoder) Err() error { return enc.err }

func (enc *Encoder) writeString(s string) *Encoder {
	if enc.err != nil {
		return enc
	}
	if enc.literal {
		enc.setErr(fmt.Errorf("wire: cannot encode while a literal is open"))
		return enc
	}
	if _, err := enc.w.WriteString(s); err != nil {
		enc.setErr(err)
	}
	return enc
}

// CRLF terminates and flushes the command.
func (enc *Encoder) CRLF() error {
	enc.writeString("\r\n")
	if enc.err != nil {
		return enc.err
	}
	return enc.w.Flush()
}

func (enc *Encoder) Atom(s string) *Encoder   { return enc.writeString(s) }
func (enc *Encoder) SP() *Encoder             { return enc.writeString(" ") }
func (enc *Encoder) Special(b byte) *Encoder  { return enc.writeString(string(b)) }
func (enc *Encoder) NIL() *Encoder            { return enc.Atom("NIL") }

func (enc *Encoder) Number(v uint32) *Encoder {
	return enc.writeString(strconv.FormatUint(uint64(v), 10))
}

func (enc *Encoder) Number64(v int64) *Encoder {
	return enc.writeString(strconv.FormatInt(v, 10))
}

func (enc *Encoder) Quoted(s string) *Encoder {
	var sb strings.Builder
	sb.Grow(2 + len(s))
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '"' || ch == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(ch)
	}
	sb.WriteByte('"')
	return enc.writeString(sb.String())
}

func (enc *Encoder) canQuote(s string) bool {
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch == 0 || ch == '\r' || ch == '\n':
			return false
		case ch > unicode.MaxASCII:
			return false
		}
	}
	return len(s) <= 4096
}

// String writes a quoted string, falling back to a literal when the value
// contains bytes that cannot be safely quoted.
func (enc *Encoder) String(s string) *Encoder {
	if enc.canQuote(s) {
		return enc.Quoted(s)
	}
	enc.stringLiteral(s)
	return enc
}

func (enc *Encoder) stringLiteral(s string) {
	wc := enc.Literal(int64(len(s)))
	if _, err := io.WriteString(wc, s); err != nil {
		enc.setErr(err)
		return
	}
	if err := wc.Close(); err != nil {
		enc.setErr(err)
	}
}

// Mailbox writes a mailbox name, special-casing INBOX so it is sent as a
// bare atom, and encoding everything else as modified UTF-7 per RFC
// 3501 section 5.1.3 before it goes on the wire.
func (enc *Encoder) Mailbox(name string) *Encoder {
	if strings.EqualFold(name, "INBOX") {
		return enc.Atom("INBOX")
	}
	encoded, err := utf7.Encode(name)
	if err != nil {
		enc.setErr(fmt.Errorf("wire: encoding mailbox name %q: %w", name, err))
		return enc
	}
	return enc.String(encoded)
}

// List writes a parenthesized list of n elements, invoking f(i) to encode
// each one.
func (enc *Encoder) List(n int, f func(i int)) *Encoder {
	enc.Special('(')
	for i := 0; i < n; i++ {
		if i > 0 {
			enc.SP()
		}
		f(i)
	}
	enc.Special(')')
	return enc
}

// Literal writes the literal header ({n} or {n+}) and returns a writer the
// caller must write exactly size bytes to, then Close. If LiteralPlus is
// not set, the caller must ensure a "+ " continuation has been read before
// Literal is called (see NewContinuationRequest).
func (enc *Encoder) Literal(size int64) io.WriteCloser {
	enc.writeString("{")
	enc.Number64(size)
	if enc.LiteralPlus {
		enc.writeString("+")
	}
	enc.writeString("}")
	if err := enc.CRLF(); err != nil {
		return errWriter{err}
	}
	if !enc.LiteralPlus && enc.NewContinuationRequest != nil {
		if err := <-enc.NewContinuationRequest(); err != nil {
			enc.setErr(err)
			return errWriter{err}
		}
	}
	enc.literal = true
	return &literalWriter{enc: enc, n: size}
}

type errWriter struct{ err error }

func (w errWriter) Write([]byte) (int, error) { return 0, w.err }
func (w errWriter) Close() error              { return w.err }

type literalWriter struct {
	enc *Encoder
	n   int64
}

func (lw *literalWriter) Write(b []byte) (int, error) {
	if int64(len(b)) > lw.n {
		return 0, fmt.Errorf("wire: wrote too many bytes in literal")
	}
	n, err := lw.enc.w.Write(b)
	lw.n -= int64(n)
	return n, err
}

func (lw *literalWriter) Close() error {
	lw.enc.literal = false
	if lw.n != 0 {
		return fmt.Errorf("wire: wrote too few bytes in literal (%d remaining)", lw.n)
	}
	return nil
}

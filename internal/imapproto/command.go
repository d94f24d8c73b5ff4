package imapproto

import (
	"io"
	"time"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/internal"
	"github.com/trojita/goimap-engine/internal/wire"
)

// Command is a fully-encoded, not-yet-sent IMAP command: its tag plus a
// function that writes the remainder and flushes once the caller is ready.
type Command struct {
	Tag   string
	write func(enc *wire.Encoder) error
}

// Send writes the command and flushes it.
func (c *Command) Send(enc *wire.Encoder) error {
	return c.write(enc)
}

func simple(tag, name string) *Command {
	return &Command{Tag: tag, write: func(enc *wire.Encoder) error {
		enc.Atom(tag).SP().Atom(name)
		return enc.CRLF()
	}}
}

func Noop(tag string) *Command       { return simple(tag, "NOOP") }
func Logout(tag string) *Command     { return simple(tag, "LOGOUT") }
func Capability(tag string) *Command { return simple(tag, "CAPABILITY") }
func Check(tag string) *Command      { return simple(tag, "CHECK") }
func Expunge(tag string) *Command    { return simple(tag, "EXPUNGE") }
func IdleStart(tag string) *Command  { return simple(tag, "IDLE") }
func StartTLS(tag string) *Command   { return simple(tag, "STARTTLS") }

// CompressDeflate issues COMPRESS DEFLATE (RFC 4978). The caller must wrap
// the underlying connection in a DEFLATE stream once the tagged OK arrives.
func CompressDeflate(tag string) *Command {
	return &Command{Tag: tag, write: func(enc *wire.Encoder) error {
		enc.Atom(tag).SP().Atom("COMPRESS").SP().Atom("DEFLATE")
		return enc.CRLF()
	}}
}

func Login(tag, username, password string) *Command {
	return &Command{Tag: tag, write: func(enc *wire.Encoder) error {
		enc.Atom(tag).SP().Atom("LOGIN").SP().String(username).SP().String(password)
		return enc.CRLF()
	}}
}

// Authenticate issues AUTHENTICATE with the given mechanism, sending ir as
// SASL-IR (RFC 4959) when non-nil so most mechanisms complete without a
// server challenge round-trip.
func Authenticate(tag, mech string, ir []byte) *Command {
	return &Command{Tag: tag, write: func(enc *wire.Encoder) error {
		enc.Atom(tag).SP().Atom("AUTHENTICATE").SP().Atom(mech)
		if ir != nil {
			enc.SP().Atom(internal.EncodeSASL(ir))
		}
		return enc.CRLF()
	}}
}

// AuthenticateContinuation answers a "+" server challenge with a
// base64-encoded response.
func AuthenticateContinuation(enc *wire.Encoder, response []byte) error {
	enc.Atom(internal.EncodeSASL(response))
	return enc.CRLF()
}

func mailboxCmd(tag, name, mailbox string) *Command {
	return &Command{Tag: tag, write: func(enc *wire.Encoder) error {
		enc.Atom(tag).SP().Atom(name).SP().Mailbox(mailbox)
		return enc.CRLF()
	}}
}

func Create(tag, mailbox string) *Command  { return mailboxCmd(tag, "CREATE", mailbox) }
func Delete(tag, mailbox string) *Command  { return mailboxCmd(tag, "DELETE", mailbox) }
func Select(tag, mailbox string) *Command  { return mailboxCmd(tag, "SELECT", mailbox) }
func Examine(tag, mailbox string) *Command { return mailboxCmd(tag, "EXAMINE", mailbox) }

func ListCmd(tag, ref, pattern string) *Command {
	return &Command{Tag: tag, write: func(enc *wire.Encoder) error {
		enc.Atom(tag).SP().Atom("LIST").SP().Mailbox(ref).SP().Mailbox(pattern)
		return enc.CRLF()
	}}
}

// FetchCmd builds a (UID) FETCH command. items is the already-parenthesized
// data item list, e.g. "(ENVELOPE BODYSTRUCTURE RFC822.SIZE)".
func FetchCmd(tag string, uid bool, set imap.SeqSet, items string) *Command {
	return &Command{Tag: tag, write: func(enc *wire.Encoder) error {
		enc.Atom(tag).SP()
		if uid {
			enc.Atom("UID").SP()
		}
		enc.Atom("FETCH").SP().Atom(set.String()).SP().Atom(items)
		return enc.CRLF()
	}}
}

// UIDSearchAll issues "UID SEARCH ALL", the sync step ObtainSynchronizedMailbox
// runs right after SELECT/EXAMINE to learn which UIDs the mailbox currently
// holds, in server-assigned sequence order.
func UIDSearchAll(tag string) *Command {
	return &Command{Tag: tag, write: func(enc *wire.Encoder) error {
		enc.Atom(tag).SP().Atom("UID").SP().Atom("SEARCH").SP().Atom("ALL")
		return enc.CRLF()
	}}
}

// Store builds a (UID) STORE command. op is "+FLAGS", "-FLAGS" or "FLAGS".
func Store(tag string, uid bool, set imap.SeqSet, op string, flags []imap.Flag) *Command {
	return &Command{Tag: tag, write: func(enc *wire.Encoder) error {
		enc.Atom(tag).SP()
		if uid {
			enc.Atom("UID").SP()
		}
		enc.Atom("STORE").SP().Atom(set.String()).SP().Atom(op).SP()
		enc.List(len(flags), func(i int) {
			enc.Atom(string(flags[i]))
		})
		return enc.CRLF()
	}}
}

// WriteAppendHeader writes
// "<tag> APPEND <mailbox> (<flags>) <date_time> {size[+]}\r\n" and returns
// a writer for exactly size bytes of message content. timestamp is the
// optional INTERNALDATE clause (RFC 3501 section 9, "date_time"); a zero
// Time omits it, leaving the server to stamp the message at delivery
// time. The caller must Close the returned writer, then call
// FinishAppend to terminate the command.
func WriteAppendHeader(enc *wire.Encoder, tag, mailbox string, flags []imap.Flag, timestamp time.Time, size int64) io.WriteCloser {
	enc.Atom(tag).SP().Atom("APPEND").SP().Mailbox(mailbox)
	if len(flags) > 0 {
		enc.SP().List(len(flags), func(i int) {
			enc.Atom(string(flags[i]))
		})
	}
	if !timestamp.IsZero() {
		enc.SP().Quoted(timestamp.Format(imap.DateTimeLayout))
	}
	enc.SP()
	return enc.Literal(size)
}

// FinishAppend terminates an APPEND command after its literal has been
// written and closed.
func FinishAppend(enc *wire.Encoder) error {
	return enc.CRLF()
}

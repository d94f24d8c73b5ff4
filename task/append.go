package task

import (
	"fmt"
	"time"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/internal/imapproto"
	"github.com/trojita/goimap-engine/internal/wire"
	"github.com/trojita/goimap-engine/router"
)

// Append issues APPEND with a literal payload, completing on OK and
// failing on NO/BAD.
type Append struct {
	Base

	Conn    *Connection
	Mailbox string
	Bytes   []byte
	Flags   []imap.Flag
	// Timestamp, if non-zero, is sent as APPEND's optional INTERNALDATE
	// clause; a zero value leaves the server to stamp the message itself.
	Timestamp time.Time

	tag string
}

func NewAppend(conn *Connection, mailbox string, bytes []byte, flags []imap.Flag, timestamp time.Time) *Append {
	return &Append{Conn: conn, Mailbox: mailbox, Bytes: bytes, Flags: flags, Timestamp: timestamp}
}

func (t *Append) Perform() {
	if t.wasAborted() {
		return
	}
	t.tag = t.Conn.Conn.NextTag(router.TagAppend, nil, t)

	var err error
	t.Conn.Conn.WithEncoder(func(enc *wire.Encoder) {
		wc := imapproto.WriteAppendHeader(enc, t.tag, t.Mailbox, t.Flags, t.Timestamp, int64(len(t.Bytes)))
		if _, werr := wc.Write(t.Bytes); werr != nil {
			err = werr
			return
		}
		if cerr := wc.Close(); cerr != nil {
			err = cerr
			return
		}
		err = imapproto.FinishAppend(enc)
	})
	if err != nil {
		t.fail(newErr(ConnectionLost, "APPEND", err))
	}
}

func (t *Append) HandleTagged(tagged *imapproto.Tagged) {
	if tagged.Tag != t.tag {
		return
	}
	if tagged.Kind != imapproto.OK {
		t.fail(newErr(CommandFailed, "APPEND", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
		return
	}
	t.complete()
}

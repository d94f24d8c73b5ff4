package task

import (
	"fmt"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/internal/imapproto"
	"github.com/trojita/goimap-engine/mailboxtree"
	"github.com/trojita/goimap-engine/router"
)

// UpdateFlagsTask issues UID STORE to add or remove a flag on a set of
// messages. It updates the tree optimistically before the server
// confirms, then reconciles against the untagged FETCH(FLAGS) responses
// that normally accompany STORE.
type UpdateFlagsTask struct {
	Base

	Conn     *Connection
	Messages []*mailboxtree.Message
	Flag     imap.Flag
	Add      bool

	tag string
}

func NewUpdateFlagsTask(conn *Connection, messages []*mailboxtree.Message, flag imap.Flag, add bool) *UpdateFlagsTask {
	return &UpdateFlagsTask{Conn: conn, Messages: messages, Flag: flag, Add: add}
}

func (t *UpdateFlagsTask) Perform() {
	if t.wasAborted() || len(t.Messages) == 0 {
		t.complete()
		return
	}
	for _, m := range t.Messages {
		t.applyOptimistic(m)
	}

	uids := make([]uint32, len(t.Messages))
	for i, m := range t.Messages {
		uids[i] = m.UID
	}

	op := "+FLAGS"
	if !t.Add {
		op = "-FLAGS"
	}
	t.Conn.Conn.AddUntaggedHandler(t)
	t.tag = t.Conn.Conn.NextTag(router.TagStore, nil, t)
	t.Conn.Conn.Send(imapproto.Store(t.tag, true, imap.SeqSetNum(uids...), op, []imap.Flag{t.Flag}))
}

func (t *UpdateFlagsTask) applyOptimistic(m *mailboxtree.Message) {
	has := m.HasFlag(t.Flag)
	switch {
	case t.Add && !has:
		m.SetFlags(append(append([]imap.Flag{}, m.Flags...), t.Flag))
	case !t.Add && has:
		next := make([]imap.Flag, 0, len(m.Flags))
		for _, f := range m.Flags {
			if f != t.Flag {
				next = append(next, f)
			}
		}
		m.SetFlags(next)
	}
}

func (t *UpdateFlagsTask) HandleUntagged(u *imapproto.Untagged) bool {
	if u.Fetch == nil {
		return false
	}
	flagsVal, ok := u.Fetch.Attrs["FLAGS"]
	if !ok {
		return false
	}
	flags, ok := flagsVal.([]imap.Flag)
	if !ok {
		return false
	}
	for _, m := range t.Messages {
		if m.SeqNum() == u.Fetch.SeqNum {
			m.SetFlags(flags)
			return true
		}
	}
	return false
}

func (t *UpdateFlagsTask) HandleTagged(tagged *imapproto.Tagged) {
	if tagged.Tag != t.tag {
		return
	}
	t.Conn.Conn.RemoveUntaggedHandler(t)
	if tagged.Kind != imapproto.OK {
		t.fail(newErr(CommandFailed, "STORE", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
		return
	}
	t.complete()
}

// ExpungeTask issues EXPUNGE and removes messages from the tree as each
// untagged EXPUNGE response arrives, renumbering subsequent sequence
// numbers per RFC 3501.
type ExpungeTask struct {
	Base

	Conn    *Connection
	Mailbox *mailboxtree.Mailbox

	tag string
}

func NewExpungeTask(conn *Connection, mailbox *mailboxtree.Mailbox) *ExpungeTask {
	return &ExpungeTask{Conn: conn, Mailbox: mailbox}
}

func (t *ExpungeTask) Perform() {
	if t.wasAborted() {
		return
	}
	t.Conn.Conn.AddUntaggedHandler(t)
	t.tag = t.Conn.Conn.NextTag(router.TagExpunge, nil, t)
	t.Conn.Conn.Send(imapproto.Expunge(t.tag))
}

func (t *ExpungeTask) HandleUntagged(u *imapproto.Untagged) bool {
	if u.Expunge == nil {
		return false
	}
	t.Mailbox.MessageList().ApplyExpunge(*u.Expunge)
	return true
}

func (t *ExpungeTask) HandleTagged(tagged *imapproto.Tagged) {
	if tagged.Tag != t.tag {
		return
	}
	t.Conn.Conn.RemoveUntaggedHandler(t)
	if tagged.Kind != imapproto.OK {
		t.fail(newErr(CommandFailed, "EXPUNGE", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
		return
	}
	t.complete()
}

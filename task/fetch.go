package task

import (
	"fmt"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/cache"
	"github.com/trojita/goimap-engine/internal/imapproto"
	"github.com/trojita/goimap-engine/mailboxtree"
	"github.com/trojita/goimap-engine/mime"
	"github.com/trojita/goimap-engine/partaddr"
	"github.com/trojita/goimap-engine/router"
)

// FetchMessageMetadata issues UID FETCH for envelope, size and body
// structure, and applies the dispatch rules for each key as the response
// arrives.
type FetchMessageMetadata struct {
	Base

	Conn    *Connection
	Cache   cache.Store
	Mailbox *mailboxtree.Mailbox
	Message *mailboxtree.Message

	tag string
}

func NewFetchMessageMetadata(conn *Connection, c cache.Store, mailbox *mailboxtree.Mailbox, msg *mailboxtree.Message) *FetchMessageMetadata {
	return &FetchMessageMetadata{Conn: conn, Cache: c, Mailbox: mailbox, Message: msg}
}

func (t *FetchMessageMetadata) Perform() {
	if t.wasAborted() {
		return
	}
	if t.Cache != nil {
		if meta, ok := t.Cache.MessageMetadata(t.Message.UID); ok {
			t.Message.SetMetadata(meta.Envelope, meta.Size, meta.BodyStructure)
			t.complete()
			return
		}
	}
	t.Conn.Conn.AddUntaggedHandler(t)
	t.tag = t.Conn.Conn.NextTag(router.TagFetchMetadata, nil, t)
	set := imap.SeqSetNum(t.Message.UID)
	t.Conn.Conn.Send(imapproto.FetchCmd(t.tag, true, set, "(ENVELOPE BODYSTRUCTURE RFC822.SIZE)"))
}

// HandleUntagged implements the FETCH dispatch rules: locate the
// enclosing mailbox, locate the message by sequence number, and apply
// each attribute key according to its own rule.
func (t *FetchMessageMetadata) HandleUntagged(u *imapproto.Untagged) bool {
	if u.Fetch == nil {
		return false
	}
	ml := t.Mailbox.MessageList()
	if ml.Status() != mailboxtree.StatusDone {
		t.logDrop(newErr(UnexpectedResponseReceived, "FETCH before message list synchronized", nil))
		return false
	}
	if int(u.Fetch.SeqNum) < 1 || int(u.Fetch.SeqNum) > ml.ChildrenCount() {
		t.logDrop(newErr(UnknownMessageIndex, fmt.Sprintf("seq %d", u.Fetch.SeqNum), nil))
		return false
	}
	msg, ok := ml.Child(int(u.Fetch.SeqNum)-1).(*mailboxtree.Message)
	if !ok || msg != t.Message {
		return false
	}

	claimed := false
	for key, val := range u.Fetch.Attrs {
		switch key {
		case "ENVELOPE":
			if env, ok := val.(*imap.Envelope); ok {
				msg.Envelope = env
				claimed = true
			}
		case "BODYSTRUCTURE":
			if bs, ok := val.(imap.BodyStructure); ok {
				if msg.BodyStructure == nil {
					msg.SetMetadata(msg.Envelope, msg.Size, bs)
				}
				claimed = true
			}
		case "RFC822.SIZE":
			if sz, ok := val.(uint32); ok {
				msg.Size = int64(sz)
				claimed = true
			}
		default:
			if t.Conn.Log != nil {
				t.Conn.Log.Warnf("fetch: ignoring unrequested attribute %s", key)
			}
		}
	}
	if msg.Envelope != nil && msg.Size >= 0 && msg.BodyStructure != nil {
		msg.SetMetadata(msg.Envelope, msg.Size, msg.BodyStructure)
		if t.Cache != nil {
			t.Cache.SetMessageMetadata(msg.UID, &cache.MessageMetadata{
				Envelope: msg.Envelope, Size: msg.Size, BodyStructure: msg.BodyStructure,
			})
		}
	}
	return claimed
}

func (t *FetchMessageMetadata) logDrop(err error) {
	if t.Conn.Log != nil {
		t.Conn.Log.Warnf("%v", err)
	}
}

func (t *FetchMessageMetadata) HandleTagged(tagged *imapproto.Tagged) {
	if tagged.Tag != t.tag {
		return
	}
	t.Conn.Conn.RemoveUntaggedHandler(t)
	if tagged.Kind != imapproto.OK {
		t.fail(newErr(CommandFailed, "FETCH", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
		return
	}
	t.complete()
}

// FetchMessagePart issues UID FETCH BODY.PEEK[part_id], decodes the result
// per the part's transfer encoding, and stores the bytes.
type FetchMessagePart struct {
	Base

	Conn    *Connection
	Cache   cache.Store
	Message *mailboxtree.Message
	Part    *mailboxtree.Part

	tag string
}

func NewFetchMessagePart(conn *Connection, c cache.Store, msg *mailboxtree.Message, part *mailboxtree.Part) *FetchMessagePart {
	return &FetchMessagePart{Conn: conn, Cache: c, Message: msg, Part: part}
}

func (t *FetchMessagePart) Perform() {
	if t.wasAborted() {
		return
	}
	if t.Cache != nil {
		if data, ok := t.Cache.MessagePart(t.Message.UID, t.Part.ID); ok {
			t.Part.SetBytes(data)
			t.complete()
			return
		}
	}
	t.Conn.Conn.AddUntaggedHandler(t)
	t.tag = t.Conn.Conn.NextTag(router.TagFetchPart, nil, t)
	set := imap.SeqSetNum(t.Message.UID)
	t.Conn.Conn.Send(imapproto.FetchCmd(t.tag, true, set, fmt.Sprintf("(BODY.PEEK[%s])", partaddr.PartID(t.Part))))
}

func (t *FetchMessagePart) HandleUntagged(u *imapproto.Untagged) bool {
	if u.Fetch == nil {
		return false
	}
	for key, val := range u.Fetch.Attrs {
		if key != "BODY["+t.Part.ID+"]" {
			continue
		}
		raw, ok := val.(string)
		if !ok {
			continue
		}
		encoding := ""
		if sp, ok := t.Part.BodyStructure.(*imap.BodyStructureSinglePart); ok {
			encoding = sp.Encoding
		}
		decoded := mime.DecodeTransferEncoding(encoding, []byte(raw), t.Conn.Log)
		t.Part.SetBytes(decoded)
		if t.Cache != nil {
			t.Cache.SetMessagePart(t.Message.UID, t.Part.ID, decoded)
		}
		return true
	}
	return false
}

func (t *FetchMessagePart) HandleTagged(tagged *imapproto.Tagged) {
	if tagged.Tag != t.tag {
		return
	}
	t.Conn.Conn.RemoveUntaggedHandler(t)
	if tagged.Kind != imapproto.OK {
		t.fail(newErr(CommandFailed, "FETCH", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
		return
	}
	t.complete()
}

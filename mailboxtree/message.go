package mailboxtree

import (
	"strconv"

	imap "github.com/trojita/goimap-engine"
)

// Message is one entry in a MessageList. Its children are the MIME parts
// of its body structure, assembled the first time BODYSTRUCTURE is
// fetched; until then ChildrenCount is 0 regardless of status, since a
// part tree cannot be built without it.
type Message struct {
	list   *MessageList
	seqNum uint32
	UID    uint32

	status FetchStatus

	Flags         []imap.Flag
	Envelope      *imap.Envelope
	Size          int64 // RFC822.SIZE, -1 until fetched
	BodyStructure imap.BodyStructure
	InternalDate  string

	children []Node // MIME part subtree, built from BodyStructure
}

func newMessage(list *MessageList, uid, seqNum uint32) *Message {
	return &Message{list: list, UID: uid, seqNum: seqNum, Size: -1}
}

func (m *Message) Kind() Kind { return KindMessage }

func (m *Message) Parent() Node { return m.list }

func (m *Message) RowInParent() int { return int(m.seqNum) - 1 }

func (m *Message) SeqNum() uint32 { return m.seqNum }

func (m *Message) Status() FetchStatus { return m.status }

func (m *Message) ChildrenCount() int {
	if m.status == StatusNone {
		m.Fetch()
	}
	return len(m.children)
}

func (m *Message) Child(index int) Node {
	if m.status == StatusNone {
		m.Fetch()
	}
	if index < 0 || index >= len(m.children) {
		return nil
	}
	return m.children[index]
}

func (m *Message) Fetch() {
	if m.status != StatusNone {
		return
	}
	m.status = StatusLoading
	if m.list.mailbox.fetcher != nil {
		m.list.mailbox.fetcher.Fetch(m)
	}
}

// SetMetadata installs envelope, size and body structure fetched by a
// FetchMessageMetadata-style task, builds the MIME part subtree from the
// body structure, and transitions to DONE.
func (m *Message) SetMetadata(env *imap.Envelope, size int64, bs imap.BodyStructure) {
	m.Envelope = env
	m.Size = size
	m.BodyStructure = bs
	m.children = buildTopLevelParts(m, bs)
	m.status = StatusDone
	if m.list.mailbox.notifier != nil {
		m.list.mailbox.notifier.DataChanged(m)
	}
}

func (m *Message) SetFlags(flags []imap.Flag) {
	m.Flags = flags
	if m.list.mailbox.notifier != nil {
		m.list.mailbox.notifier.DataChanged(m)
	}
}

func (m *Message) HasFlag(f imap.Flag) bool {
	for _, flag := range m.Flags {
		if flag == f {
			return true
		}
	}
	return false
}

// buildTopLevelParts produces a message's direct Part children. A
// multipart body is transparent: its own immediate children are numbered
// 1, 2, 3... directly under the message, with no part ID of its own. A
// non-multipart body has exactly one part, numbered "1", standing for the
// whole message.
func buildTopLevelParts(parent Node, bs imap.BodyStructure) []Node {
	if mp, ok := bs.(*imap.BodyStructureMultiPart); ok {
		return numberedParts(parent, mp.Parts, "")
	}
	return []Node{buildOnePart(parent, bs, joinPartID("", 1))}
}

// buildOnePart creates the Part for bs at id and recursively builds its own
// children, applying the same multipart transparency rule to a nested
// message/rfc822 body as buildTopLevelParts applies to the message itself.
func buildOnePart(parent Node, bs imap.BodyStructure, id string) *Part {
	p := newPart(parent, id, bs)

	switch t := bs.(type) {
	case *imap.BodyStructureMultiPart:
		p.children = numberedParts(p, t.Parts, id)
	case *imap.BodyStructureSinglePart:
		if t.MessageRFC822 != nil && t.MessageRFC822.Body != nil {
			nested := t.MessageRFC822.Body
			if nmp, ok := nested.(*imap.BodyStructureMultiPart); ok {
				p.children = numberedParts(p, nmp.Parts, id)
			} else {
				p.children = []Node{buildOnePart(p, nested, joinPartID(id, 1))}
			}
		}
	}
	return p
}

func numberedParts(parent Node, parts []imap.BodyStructure, prefix string) []Node {
	out := make([]Node, len(parts))
	for i, c := range parts {
		out[i] = buildOnePart(parent, c, joinPartID(prefix, i+1))
	}
	return out
}

func joinPartID(prefix string, n int) string {
	if prefix == "" {
		return strconv.Itoa(n)
	}
	return prefix + "." + strconv.Itoa(n)
}

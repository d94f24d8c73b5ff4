package mailboxtree

import imap "github.com/trojita/goimap-engine"

// Part is a single node in a message's MIME part tree. Its ID is the
// dotted, 1-based path used in BODY[id] (e.g. "1.2"); HEADER, TEXT and MIME
// sub-parts of a given part are addressed by appending those literal
// suffixes rather than by a child Part, since they're peculiar to FETCH's
// section syntax and carry no BodyStructure of their own.
type Part struct {
	parent Node
	ID     string

	status FetchStatus

	BodyStructure imap.BodyStructure
	Bytes         []byte // populated once Status() == StatusDone

	children []Node
}

func newPart(parent Node, id string, bs imap.BodyStructure) *Part {
	return &Part{parent: parent, ID: id, BodyStructure: bs}
}

func (p *Part) Kind() Kind { return KindPart }

func (p *Part) Parent() Node { return p.parent }

func (p *Part) RowInParent() int {
	var siblings []Node
	switch par := p.parent.(type) {
	case *Message:
		siblings = par.children
	case *Part:
		siblings = par.children
	}
	for i, s := range siblings {
		if s == Node(p) {
			return i
		}
	}
	return 0
}

func (p *Part) Status() FetchStatus { return p.status }

func (p *Part) ChildrenCount() int { return len(p.children) }

func (p *Part) Child(index int) Node {
	if index < 0 || index >= len(p.children) {
		return nil
	}
	return p.children[index]
}

// MediaType returns this part's lowercased "type/subtype", or "" if its
// body structure is unknown.
func (p *Part) MediaType() string {
	if p.BodyStructure == nil {
		return ""
	}
	return p.BodyStructure.MediaType()
}

// ContentID returns the part's Content-ID (without angle brackets), if
// RFC 3501's body-fld-id carried one.
func (p *Part) ContentID() string {
	if sp, ok := p.BodyStructure.(*imap.BodyStructureSinglePart); ok {
		return sp.ID
	}
	return ""
}

func (p *Part) message() *Message {
	n := p.Parent()
	for {
		switch t := n.(type) {
		case *Message:
			return t
		case *Part:
			n = t.Parent()
		default:
			return nil
		}
	}
}

// Fetch requests this part's raw bytes via BODY[id]. A no-op once
// status has left NONE.
func (p *Part) Fetch() {
	if p.status != StatusNone {
		return
	}
	p.status = StatusLoading
	msg := p.message()
	if msg != nil && msg.list.mailbox.fetcher != nil {
		msg.list.mailbox.fetcher.Fetch(p)
	}
}

// SetBytes installs the fetched payload and transitions to DONE.
func (p *Part) SetBytes(data []byte) {
	p.Bytes = data
	p.status = StatusDone
	msg := p.message()
	if msg != nil && msg.list.mailbox.notifier != nil {
		msg.list.mailbox.notifier.DataChanged(p)
	}
}

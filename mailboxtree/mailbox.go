package mailboxtree

import imap "github.com/trojita/goimap-engine"

// Mailbox is a named container of messages. Its child at index 0 is always
// its MessageList; indices >= 1 are sub-mailboxes appended after a
// successful LIST. The single instance with Parent() == nil is the
// implicit root: a placeholder whose own MessageList is born DONE with
// zero messages (it is never selectable), and whose children are the
// top-level mailboxes the initial LIST discovers.
type Mailbox struct {
	Name string
	Sep  string
	Attrs []imap.MailboxAttr

	// Sentinel -1 means "unknown"; the source never implements unread
	// counts, so this is the only value most backends will ever see.
	TotalMessageCount  int
	UnreadMessageCount int
	RecentMessageCount int

	parent   *Mailbox
	status   FetchStatus
	children []Node // children[0] is always *MessageList

	fetcher  Fetcher
	notifier ChangeNotifier
}

// NewRootMailbox creates the implicit root. Its MessageList child is born
// DONE and empty, matching invariant 5's treatment of unselectable
// mailboxes: no SELECT is ever issued for the root.
func NewRootMailbox(fetcher Fetcher, notifier ChangeNotifier) *Mailbox {
	m := &Mailbox{
		TotalMessageCount: -1, UnreadMessageCount: -1, RecentMessageCount: -1,
		fetcher: fetcher, notifier: notifier,
	}
	ml := newMessageList(m)
	ml.status = StatusDone
	m.children = []Node{ml}
	return m
}

// NewMailbox constructs a sub-mailbox. Its MessageList is always child 0,
// born NONE unless the mailbox is \Noselect, in which case it is forced to
// DONE/empty immediately per invariant 5.
func NewMailbox(parent *Mailbox, name, sep string, attrs []imap.MailboxAttr) *Mailbox {
	m := &Mailbox{
		Name: name, Sep: sep, Attrs: attrs,
		TotalMessageCount: -1, UnreadMessageCount: -1, RecentMessageCount: -1,
		parent: parent, fetcher: parent.fetcher, notifier: parent.notifier,
	}
	ml := newMessageList(m)
	if m.IsNoSelect() {
		ml.status = StatusDone
	}
	m.children = []Node{ml}
	return m
}

func (m *Mailbox) Kind() Kind { return KindMailbox }

func (m *Mailbox) Parent() Node {
	if m.parent == nil {
		return nil
	}
	return m.parent
}

func (m *Mailbox) RowInParent() int {
	if m.parent == nil {
		return 0
	}
	for i, c := range m.parent.children {
		if c == Node(m) {
			return i
		}
	}
	return 0
}

func (m *Mailbox) Status() FetchStatus { return m.status }

func (m *Mailbox) ChildrenCount() int {
	if m.status == StatusNone {
		m.Fetch()
	}
	return len(m.children)
}

func (m *Mailbox) Child(index int) Node {
	if index != 0 && m.status == StatusNone {
		m.Fetch()
	}
	if index < 0 || index >= len(m.children) {
		return nil
	}
	return m.children[index]
}

// MessageList returns child 0 without ever triggering a fetch, for callers
// that already know the shape of a mailbox node.
func (m *Mailbox) MessageList() *MessageList {
	return m.children[0].(*MessageList)
}

func (m *Mailbox) Fetch() {
	if m.status != StatusNone {
		return
	}
	m.status = StatusLoading
	if m.fetcher != nil {
		m.fetcher.Fetch(m)
	}
}

// SetChildren replaces the sub-mailbox list (indices >= 1), preserving
// index 0, transitions to DONE, and returns the evicted sub-mailboxes for
// the caller to dispose of. If the mailbox is \Noselect, the preserved
// MessageList is forced to DONE.
func (m *Mailbox) SetChildren(subMailboxes []*Mailbox) []*Mailbox {
	old := make([]*Mailbox, 0, len(m.children)-1)
	for _, c := range m.children[1:] {
		old = append(old, c.(*Mailbox))
	}

	children := make([]Node, 1+len(subMailboxes))
	children[0] = m.children[0]
	for i, sm := range subMailboxes {
		children[i+1] = sm
	}
	m.children = children
	m.status = StatusDone

	if m.IsNoSelect() {
		m.MessageList().status = StatusDone
	}

	if m.notifier != nil {
		m.notifier.DataChanged(m)
	}
	return old
}

func (m *Mailbox) IsNoSelect() bool {
	for _, a := range m.Attrs {
		if a == imap.AttrNoSelect {
			return true
		}
	}
	return false
}

// HasChildMailboxes answers via the LIST flags fast path described by the
// engine: \Noinferiors or \HasNoChildren means false, \HasChildren means
// true, and otherwise a LIST is triggered and the answer is derived from
// the (possibly stale) children count.
func (m *Mailbox) HasChildMailboxes() bool {
	for _, a := range m.Attrs {
		switch a {
		case imap.AttrNoInferiors, imap.AttrHasNoChildren:
			return false
		case imap.AttrHasChildren:
			return true
		}
	}
	return m.ChildrenCount() > 1
}

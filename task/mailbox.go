package task

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/trojita/goimap-engine/cache"
	"github.com/trojita/goimap-engine/internal/imapproto"
	"github.com/trojita/goimap-engine/mailboxtree"
	"github.com/trojita/goimap-engine/router"
)

// CreateMailbox issues CREATE, and on success follows up with LIST to
// learn the new mailbox's separator and attributes before merging it into
// the tree and the cache, exactly as prescribed.
type CreateMailbox struct {
	Base

	Conn    *Connection
	Cache   cache.Store
	Parent  *mailboxtree.Mailbox
	Name    string

	OnSucceeded func(name string)
	OnFailed    func(name string, reason error)

	createTag string
	listTag   string
}

func NewCreateMailbox(conn *Connection, c cache.Store, parent *mailboxtree.Mailbox, name string) *CreateMailbox {
	return &CreateMailbox{Conn: conn, Cache: c, Parent: parent, Name: name}
}

func (t *CreateMailbox) Perform() {
	if t.wasAborted() {
		return
	}
	t.Conn.Conn.AddUntaggedHandler(t)
	t.createTag = t.Conn.Conn.NextTag(router.TagCreate, nil, t)
	t.Conn.Conn.Send(imapproto.Create(t.createTag, t.Name))
}

func (t *CreateMailbox) HandleUntagged(u *imapproto.Untagged) bool {
	if u.List != nil && u.List.Name == t.Name {
		sub := mailboxtree.NewMailbox(t.Parent, u.List.Name, u.List.Delim, u.List.Attrs)
		t.Parent.SetChildren(append(subMailboxesOf(t.Parent), sub))
		if t.Cache != nil {
			if entries, ok := t.Cache.ChildMailboxes(t.Parent.Name); ok {
				t.Cache.SetChildMailboxes(t.Parent.Name, append(entries, cache.MailboxEntry{Name: sub.Name, Sep: sub.Sep, Attrs: sub.Attrs}))
			}
		}
		if t.OnSucceeded != nil {
			t.OnSucceeded(t.Name)
		}
		return true
	}
	return false
}

func (t *CreateMailbox) HandleTagged(tagged *imapproto.Tagged) {
	switch tagged.Tag {
	case t.createTag:
		if tagged.Kind != imapproto.OK {
			err := newErr(CommandFailed, "CREATE", fmt.Errorf("%s %s", tagged.Kind, tagged.Text))
			if t.OnFailed != nil {
				t.OnFailed(t.Name, err)
			}
			t.Conn.Conn.RemoveUntaggedHandler(t)
			t.fail(err)
			return
		}
		t.listTag = t.Conn.Conn.NextTag(router.TagListAfterCreate, nil, t)
		t.Conn.Conn.Send(imapproto.ListCmd(t.listTag, "", t.Name))
	case t.listTag:
		t.Conn.Conn.RemoveUntaggedHandler(t)
		t.complete()
	}
}

func subMailboxesOf(m *mailboxtree.Mailbox) []*mailboxtree.Mailbox {
	out := make([]*mailboxtree.Mailbox, 0, m.ChildrenCount()-1)
	for i := 1; i < m.ChildrenCount(); i++ {
		if sm, ok := m.Child(i).(*mailboxtree.Mailbox); ok {
			out = append(out, sm)
		}
	}
	return out
}

// DeleteMailbox issues DELETE; on success it invalidates the parent's
// cached child list and removes the tree node.
type DeleteMailbox struct {
	Base

	Conn  *Connection
	Cache cache.Store
	Node  *mailboxtree.Mailbox

	tag string
}

func NewDeleteMailbox(conn *Connection, c cache.Store, node *mailboxtree.Mailbox) *DeleteMailbox {
	return &DeleteMailbox{Conn: conn, Cache: c, Node: node}
}

func (t *DeleteMailbox) Perform() {
	if t.wasAborted() {
		return
	}
	t.tag = t.Conn.Conn.NextTag(router.TagDelete, nil, t)
	t.Conn.Conn.Send(imapproto.Delete(t.tag, t.Node.Name))
}

func (t *DeleteMailbox) HandleTagged(tagged *imapproto.Tagged) {
	if tagged.Tag != t.tag {
		return
	}
	if tagged.Kind != imapproto.OK {
		t.fail(newErr(CommandFailed, "DELETE", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
		return
	}
	if parent, ok := t.Node.Parent().(*mailboxtree.Mailbox); ok {
		if t.Cache != nil {
			t.Cache.ForgetChildMailboxes(parent.Name)
		}
		remaining := make([]*mailboxtree.Mailbox, 0)
		for _, sm := range subMailboxesOf(parent) {
			if sm != t.Node {
				remaining = append(remaining, sm)
			}
		}
		parent.SetChildren(remaining)
	}
	t.complete()
}

// ListChildMailboxes issues LIST parent.sep* to enumerate one mailbox's
// direct children, merges with the cache, and transitions parent to DONE.
type ListChildMailboxes struct {
	Base

	Conn   *Connection
	Cache  cache.Store
	Parent *mailboxtree.Mailbox

	tag      string
	fetched  []*mailboxtree.Mailbox
}

func NewListChildMailboxes(conn *Connection, c cache.Store, parent *mailboxtree.Mailbox) *ListChildMailboxes {
	return &ListChildMailboxes{Conn: conn, Cache: c, Parent: parent}
}

func (t *ListChildMailboxes) Perform() {
	if t.wasAborted() {
		return
	}
	if t.Cache != nil {
		if entries, ok := t.Cache.ChildMailboxes(t.Parent.Name); ok {
			t.applyEntries(entries)
			t.complete()
			return
		}
	}
	t.Conn.Conn.AddUntaggedHandler(t)
	ref := t.Parent.Name
	pattern := "*"
	if ref != "" {
		pattern = ref + t.Parent.Sep + "*"
		ref = ""
	}
	t.tag = t.Conn.Conn.NextTag(router.TagList, nil, t)
	t.Conn.Conn.Send(imapproto.ListCmd(t.tag, ref, pattern))
}

func (t *ListChildMailboxes) HandleUntagged(u *imapproto.Untagged) bool {
	if u.List == nil {
		return false
	}
	t.fetched = append(t.fetched, mailboxtree.NewMailbox(t.Parent, u.List.Name, u.List.Delim, u.List.Attrs))
	return true
}

func (t *ListChildMailboxes) HandleTagged(tagged *imapproto.Tagged) {
	if tagged.Tag != t.tag {
		return
	}
	t.Conn.Conn.RemoveUntaggedHandler(t)
	if tagged.Kind != imapproto.OK {
		t.fail(newErr(CommandFailed, "LIST", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
		return
	}
	entries := make([]cache.MailboxEntry, len(t.fetched))
	for i, m := range t.fetched {
		entries[i] = cache.MailboxEntry{Name: m.Name, Sep: m.Sep, Attrs: m.Attrs}
	}
	if t.Cache != nil {
		t.Cache.SetChildMailboxes(t.Parent.Name, entries)
	}
	t.Parent.SetChildren(t.fetched)
	t.complete()
}

func (t *ListChildMailboxes) applyEntries(entries []cache.MailboxEntry) {
	subs := make([]*mailboxtree.Mailbox, len(entries))
	for i, e := range entries {
		subs[i] = mailboxtree.NewMailbox(t.Parent, e.Name, e.Sep, e.Attrs)
	}
	t.Parent.SetChildren(subs)
}

// ObtainSynchronizedMailbox SELECTs (or EXAMINEs, read-only) a mailbox,
// follows up with UID SEARCH ALL to learn the current UID set, and hands
// that to MessageList.Sync before completing — this is trojita's sync
// step, and it's what lets the message list leave StatusLoading at all.
// It becomes a prerequisite for every mailbox-scoped FETCH/STORE/EXPUNGE
// task, and tracks UIDVALIDITY to fail the dependent chain if it changes
// mid-session.
type ObtainSynchronizedMailbox struct {
	Base

	Conn     *Connection
	Mailbox  *mailboxtree.Mailbox
	ReadOnly bool

	tag       string
	searchTag string
	exists    uint32
	uids      []uint32
}

func NewObtainSynchronizedMailbox(conn *Connection, m *mailboxtree.Mailbox, readOnly bool) *ObtainSynchronizedMailbox {
	return &ObtainSynchronizedMailbox{Conn: conn, Mailbox: m, ReadOnly: readOnly}
}

func (t *ObtainSynchronizedMailbox) Perform() {
	if t.wasAborted() {
		return
	}
	if t.Mailbox.IsNoSelect() {
		t.fail(newErr(UnexpectedResponseReceived, "SELECT on \\Noselect mailbox "+t.Mailbox.Name, nil))
		return
	}
	t.Conn.Conn.AddUntaggedHandler(t)
	t.tag = t.Conn.Conn.NextTag(router.TagSelect, nil, t)
	if t.ReadOnly {
		t.Conn.Conn.Send(imapproto.Examine(t.tag, t.Mailbox.Name))
	} else {
		t.Conn.Conn.Send(imapproto.Select(t.tag, t.Mailbox.Name))
	}
}

func (t *ObtainSynchronizedMailbox) HandleUntagged(u *imapproto.Untagged) bool {
	switch {
	case u.Exists != nil:
		t.exists = *u.Exists
		t.Mailbox.MessageList().ApplyExists(*u.Exists)
		return true
	case u.Status != nil && u.Status.Name == t.Mailbox.Name:
		return true
	case u.Search != nil:
		t.uids = u.Search
		return true
	case u.Cond != nil:
		return t.handleCond(u.Cond)
	}
	return false
}

// handleCond inspects a bare "* OK [...] ..." response for the
// UIDVALIDITY resp-code SELECT/EXAMINE send alongside the tagged OK
// (RFC 3501 section 6.3.1). A mailbox deleted and recreated gets a fresh
// UIDVALIDITY, which means every UID this task's caller may have cached
// for it now names a different message; UIDValidityChanged records the
// value and, the second time this task runs against the same mailbox
// with a different one, reports it so handleCond can fail the chain instead
// of letting stale UIDs drive a FETCH/STORE against the wrong message.
func (t *ObtainSynchronizedMailbox) handleCond(cond *imapproto.CondState) bool {
	v, ok := parseUIDValidity(cond.Code)
	if !ok {
		return false
	}
	if t.UIDValidityChanged(v) {
		t.Conn.Conn.RemoveUntaggedHandler(t)
		t.fail(newErr(CommandFailed, "SELECT", fmt.Errorf("UIDVALIDITY changed for mailbox %s", t.Mailbox.Name)))
	}
	return true
}

// parseUIDValidity extracts the numeric value out of a resp-text-code
// shaped like "UIDVALIDITY 3857529045"; any other code (UIDNEXT,
// PERMANENTFLAGS, ALERT, ...) reports false so the caller can treat the
// response as unclaimed.
func parseUIDValidity(code string) (uint32, bool) {
	fields := strings.Fields(code)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "UIDVALIDITY") {
		return 0, false
	}
	n, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func (t *ObtainSynchronizedMailbox) HandleTagged(tagged *imapproto.Tagged) {
	switch tagged.Tag {
	case t.tag:
		if tagged.Kind != imapproto.OK {
			t.Conn.Conn.RemoveUntaggedHandler(t)
			t.fail(newErr(CommandFailed, "SELECT", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
			return
		}
		if t.Conn.Selected != "" && t.Conn.Selected != t.Mailbox.Name {
			mailboxtree.Invalidate(t.Mailbox.MessageList())
		}
		t.Conn.Selected = t.Mailbox.Name
		t.Conn.SelectedReadOnly = t.ReadOnly
		t.searchTag = t.Conn.Conn.NextTag(router.TagSearch, nil, t)
		t.Conn.Conn.Send(imapproto.UIDSearchAll(t.searchTag))
	case t.searchTag:
		t.Conn.Conn.RemoveUntaggedHandler(t)
		if tagged.Kind != imapproto.OK {
			t.fail(newErr(CommandFailed, "UID SEARCH", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
			return
		}
		t.Mailbox.MessageList().Sync(t.uids)
		t.complete()
	}
}

// UIDValidityChanged reports whether a freshly observed UIDVALIDITY
// differs from the one last recorded on the mailbox's MessageList, and
// records the new value either way. The value lives on the tree node
// rather than on this task, since a fresh ObtainSynchronizedMailbox is
// constructed for every SELECT: the comparison has to survive across
// task instances to catch a mailbox that changed UIDVALIDITY between two
// separate selects of it.
func (t *ObtainSynchronizedMailbox) UIDValidityChanged(newValue uint32) bool {
	ml := t.Mailbox.MessageList()
	changed := ml.UIDValidity != 0 && ml.UIDValidity != newValue
	ml.UIDValidity = newValue
	return changed
}

// Package model is the engine's UI-facing façade: a single object a view
// layer polls by row/column instead of reaching into mailboxtree and task
// directly. It implements mailboxtree.Fetcher and mailboxtree.ChangeNotifier
// so the tree can ask for data and announce changes without depending on
// either the task package or this one.
package model

import (
	"sync"
	"time"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/cache"
	"github.com/trojita/goimap-engine/logging"
	"github.com/trojita/goimap-engine/mailboxtree"
	"github.com/trojita/goimap-engine/task"
)

// Role selects which facet of a node Data should return, mirroring a
// view's column/role axis instead of exposing the node's concrete type.
type Role int

const (
	RoleDisplay Role = iota
	RoleTooltip
	RoleEnvelope
	RoleSize
	RoleFlags
	RoleIsFetched
	RolePartBytes
)

// Signals groups the callbacks a view registers to learn about
// asynchronous state changes; each is optional and fires on whatever
// goroutine originated the change; since every mutation happens inside
// the connection's own dispatch goroutine, a single-threaded view may
// call back into Model directly from these without its own locking.
type Signals struct {
	MailboxCreationSucceeded func(name string)
	MailboxCreationFailed    func(name string, reason error)
	ActivityHappening        func(active bool)
	DataChanged              func(n mailboxtree.Node)
	MessageChanged           func(msg *mailboxtree.Message)
	RequestingExternal       func(url string)
}

// Model owns the tree root, the connection pool it drives tasks over, and
// the cache tasks read through. One Model serves one IMAP account.
type Model struct {
	mu sync.Mutex

	Root  *mailboxtree.Mailbox
	Pool  *task.Pool
	Cache cache.Store
	Log   *logging.Logger

	Signals Signals

	active int // count of in-flight tasks, drives ActivityHappening
}

// New constructs a Model whose tree root uses m itself as both Fetcher and
// ChangeNotifier. pool is consulted by GetAnyConnection every time a task
// needs to run: it completes immediately once the pool holds a READY
// connection, or establishes one first.
func New(pool *task.Pool, c cache.Store, log *logging.Logger) *Model {
	m := &Model{Pool: pool, Cache: c, Log: log}
	m.Root = mailboxtree.NewRootMailbox(m, m)
	return m
}

// RowCount returns n's child count without blocking; like mailboxtree
// itself, a NONE node triggers a background fetch and returns its
// current (possibly zero) count immediately.
func (m *Model) RowCount(n mailboxtree.Node) int {
	if n == nil {
		return m.Root.ChildrenCount()
	}
	return n.ChildrenCount()
}

// Child is the bounds-checked row accessor mirroring mailboxtree.Node.Child.
func (m *Model) Child(n mailboxtree.Node, row int) mailboxtree.Node {
	if n == nil {
		return m.Root.Child(row)
	}
	return n.Child(row)
}

// Data answers a role query against a node. RolePartBytes triggers a fetch
// on a Part the first time it's requested and returns nil until DONE.
func (m *Model) Data(n mailboxtree.Node, role Role) interface{} {
	switch role {
	case RoleIsFetched:
		return n.Status() == mailboxtree.StatusDone
	}

	switch t := n.(type) {
	case *mailboxtree.Mailbox:
		return mailboxData(t, role)
	case *mailboxtree.MessageList:
		return nil
	case *mailboxtree.Message:
		return messageData(t, role)
	case *mailboxtree.Part:
		return partData(t, role)
	}
	return nil
}

func mailboxData(mb *mailboxtree.Mailbox, role Role) interface{} {
	switch role {
	case RoleDisplay:
		return mb.Name
	case RoleTooltip:
		return mb.Name
	default:
		return nil
	}
}

func messageData(msg *mailboxtree.Message, role Role) interface{} {
	switch role {
	case RoleDisplay, RoleTooltip, RoleEnvelope:
		return msg.Envelope
	case RoleSize:
		return msg.Size
	case RoleFlags:
		return msg.Flags
	default:
		return nil
	}
}

func partData(p *mailboxtree.Part, role Role) interface{} {
	switch role {
	case RoleDisplay, RoleTooltip:
		return p.MediaType()
	case RolePartBytes:
		if p.Status() == mailboxtree.StatusNone {
			p.Fetch()
			return nil
		}
		return p.Bytes
	default:
		return nil
	}
}

// RescanForChildMailboxes forces a fresh LIST under mailbox, discarding
// whatever sub-mailbox list (and cache entry) it currently holds.
func (m *Model) RescanForChildMailboxes(mailbox *mailboxtree.Mailbox) {
	if m.Cache != nil {
		m.Cache.ForgetChildMailboxes(mailbox.Name)
	}
	mailboxtree.Invalidate(mailbox)
	mailbox.Fetch()
}

// ExpungeMailbox issues EXPUNGE against mailbox's selected session.
// EXPUNGE is rejected by the server on a read-only session, so this always
// runs the prerequisite SELECT in read-write mode.
func (m *Model) ExpungeMailbox(mailbox *mailboxtree.Mailbox) {
	m.withMailbox(mailbox, false, func(conn *task.Connection) task.Task {
		return task.NewExpungeTask(conn, mailbox)
	})
}

// AppendMessage uploads a message into target via APPEND. timestamp, if
// non-zero, is sent as the message's INTERNALDATE; a zero value leaves
// the server to stamp it at delivery time.
func (m *Model) AppendMessage(target string, bytes []byte, flags []imap.Flag, timestamp time.Time) {
	m.withConnection(func(conn *task.Connection) task.Task {
		return task.NewAppend(conn, target, bytes, flags, timestamp)
	})
}

// MarkMessagesRead sets or clears \Seen on a batch of messages in one
// STORE round-trip. STORE needs a read-write session, same as Expunge.
func (m *Model) MarkMessagesRead(messages []*mailboxtree.Message, read bool) {
	m.withMessages(messages, false, func(conn *task.Connection) task.Task {
		return task.NewUpdateFlagsTask(conn, messages, imap.FlagSeen, read)
	})
}

// SetMessageFlags sets or clears an arbitrary flag on a batch of messages.
func (m *Model) SetMessageFlags(messages []*mailboxtree.Message, flag imap.Flag, add bool) {
	m.withMessages(messages, false, func(conn *task.Connection) task.Task {
		return task.NewUpdateFlagsTask(conn, messages, flag, add)
	})
}

// CreateMailbox issues CREATE under parent, reporting success or failure
// through Signals rather than blocking the caller.
func (m *Model) CreateMailbox(parent *mailboxtree.Mailbox, name string) {
	m.withConnection(func(conn *task.Connection) task.Task {
		t := task.NewCreateMailbox(conn, m.Cache, parent, name)
		t.OnSucceeded = m.Signals.MailboxCreationSucceeded
		t.OnFailed = m.Signals.MailboxCreationFailed
		return t
	})
}

// DeleteMailbox issues DELETE for node.
func (m *Model) DeleteMailbox(node *mailboxtree.Mailbox) {
	m.withConnection(func(conn *task.Connection) task.Task {
		return task.NewDeleteMailbox(conn, m.Cache, node)
	})
}

// Fetch satisfies mailboxtree.Fetcher: it's the single dispatch point the
// tree calls into whenever a NONE node is asked for data it doesn't have.
func (m *Model) Fetch(n mailboxtree.Node) {
	switch t := n.(type) {
	case *mailboxtree.Mailbox:
		m.withConnection(func(conn *task.Connection) task.Task {
			return task.NewListChildMailboxes(conn, m.Cache, t)
		})
	case *mailboxtree.MessageList:
		mb := t.Parent().(*mailboxtree.Mailbox)
		m.withConnection(func(conn *task.Connection) task.Task {
			return task.NewObtainSynchronizedMailbox(conn, mb, true)
		})
	case *mailboxtree.Message:
		mb := messageMailbox(t)
		m.withMailbox(mb, true, func(conn *task.Connection) task.Task {
			return task.NewFetchMessageMetadata(conn, m.Cache, mb, t)
		})
	case *mailboxtree.Part:
		msg := partMessage(t)
		mb := messageMailbox(msg)
		m.withMailbox(mb, true, func(conn *task.Connection) task.Task {
			return task.NewFetchMessagePart(conn, m.Cache, msg, t)
		})
	}
}

// DataChanged satisfies mailboxtree.ChangeNotifier.
func (m *Model) DataChanged(n mailboxtree.Node) {
	if m.Signals.DataChanged != nil {
		m.Signals.DataChanged(n)
	}
	if msg, ok := n.(*mailboxtree.Message); ok && m.Signals.MessageChanged != nil {
		m.Signals.MessageChanged(msg)
	}
}

// withConnection runs build once a READY connection is available and then
// performs the task it returns. It depends on GetAnyConnection exactly as
// the task DAG prescribes: that dependency completes immediately when the
// pool already holds a READY connection, or drives a fresh CreateConnection
// through to completion first.
func (m *Model) withConnection(build func(conn *task.Connection) task.Task) {
	m.mu.Lock()
	m.active++
	if m.active == 1 && m.Signals.ActivityHappening != nil {
		m.Signals.ActivityHappening(true)
	}
	m.mu.Unlock()

	get := task.NewGetAnyConnection(m.Pool)
	task.WaitAll([]*task.Base{&get.Base}, func() {
		t := build(get.Result())
		t.(interface{ OnDone(func(error)) }).OnDone(func(error) { m.taskDone() })
		t.Perform()
	}, func(err error) {
		if m.Log != nil {
			m.Log.Errorf("model: connection unavailable: %v", err)
		}
		m.taskDone()
	})
	get.Perform()
}

// withMailbox is withConnection's mailbox-scoped sibling: every FETCH,
// STORE, or EXPUNGE is meaningless unless mailbox is the one actually
// SELECTed on the connection the pool hands back, since the pool keeps a
// single shared connection and an earlier caller may have left some other
// mailbox selected. It runs ObtainSynchronizedMailbox first whenever
// mailbox isn't already Connection.Selected, and only then builds and
// performs the caller's task.
func (m *Model) withMailbox(mailbox *mailboxtree.Mailbox, readOnly bool, build func(conn *task.Connection) task.Task) {
	m.mu.Lock()
	m.active++
	if m.active == 1 && m.Signals.ActivityHappening != nil {
		m.Signals.ActivityHappening(true)
	}
	m.mu.Unlock()

	get := task.NewGetAnyConnection(m.Pool)
	task.WaitAll([]*task.Base{&get.Base}, func() {
		conn := get.Result()
		if conn.Selected == mailbox.Name && (readOnly || !conn.SelectedReadOnly) {
			m.runMailboxTask(conn, build)
			return
		}
		sel := task.NewObtainSynchronizedMailbox(conn, mailbox, readOnly)
		task.WaitAll([]*task.Base{&sel.Base}, func() {
			m.runMailboxTask(conn, build)
		}, func(err error) {
			if m.Log != nil {
				m.Log.Errorf("model: failed selecting mailbox %s: %v", mailbox.Name, err)
			}
			m.taskDone()
		})
		sel.Perform()
	}, func(err error) {
		if m.Log != nil {
			m.Log.Errorf("model: connection unavailable: %v", err)
		}
		m.taskDone()
	})
	get.Perform()
}

func (m *Model) runMailboxTask(conn *task.Connection, build func(conn *task.Connection) task.Task) {
	t := build(conn)
	t.(interface{ OnDone(func(error)) }).OnDone(func(error) { m.taskDone() })
	t.Perform()
}

// withMessages resolves messages' common mailbox and defers to withMailbox;
// every caller passes a non-empty batch drawn from a single MessageList, so
// the first message's mailbox speaks for the whole batch.
func (m *Model) withMessages(messages []*mailboxtree.Message, readOnly bool, build func(conn *task.Connection) task.Task) {
	if len(messages) == 0 {
		return
	}
	m.withMailbox(messageMailbox(messages[0]), readOnly, build)
}

func (m *Model) taskDone() {
	m.mu.Lock()
	m.active--
	done := m.active == 0
	m.mu.Unlock()
	if done && m.Signals.ActivityHappening != nil {
		m.Signals.ActivityHappening(false)
	}
}

func messageMailbox(msg *mailboxtree.Message) *mailboxtree.Mailbox {
	return msg.Parent().(*mailboxtree.MessageList).Parent().(*mailboxtree.Mailbox)
}

func partMessage(p *mailboxtree.Part) *mailboxtree.Message {
	n := p.Parent()
	for {
		switch t := n.(type) {
		case *mailboxtree.Message:
			return t
		case *mailboxtree.Part:
			n = t.Parent()
		default:
			return nil
		}
	}
}

// Package mailboxtree implements the heterogeneous, lazily fetched node
// hierarchy described by the engine: mailboxes, the synthetic message-list
// node, messages, and MIME parts. Every node kind shares one small vtable
// (Kind, Parent, RowInParent, Status, ChildrenCount, Child) so traversal
// code elsewhere (part addressing, rendering helpers) stays polymorphic
// without a class hierarchy — a tagged union in everything but name.
package mailboxtree

// FetchStatus is the per-node fetch state described by the engine: whether
// a node's children (or, for a part, its bytes) have ever been requested.
type FetchStatus int

const (
	StatusNone FetchStatus = iota
	StatusLoading
	StatusDone
)

func (s FetchStatus) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusLoading:
		return "LOADING"
	case StatusDone:
		return "DONE"
	default:
		return "?"
	}
}

// Kind discriminates the sum type's variants.
type Kind int

const (
	KindMailbox Kind = iota
	KindMessageList
	KindMessage
	KindPart
)

// Fetcher is invoked by a node the first time one of its lazily fetched
// facets (children, or a part's bytes) is requested while its status is
// NONE. It is supplied by the layer that owns the task engine; the tree
// itself never imports the task package, keeping the dependency one-way.
type Fetcher interface {
	Fetch(n Node)
}

// ChangeNotifier is told whenever a node's children or data change, so a UI
// observing the tree from the same event loop can refresh without polling.
type ChangeNotifier interface {
	DataChanged(n Node)
}

// Node is the common interface every tree node variant satisfies.
type Node interface {
	Kind() Kind
	Parent() Node
	// RowInParent returns this node's position among its parent's
	// children; 0 for the parentless root.
	RowInParent() int
	Status() FetchStatus
	// ChildrenCount triggers a fetch if status is NONE, but never blocks:
	// it returns the current, possibly stale, count.
	ChildrenCount() int
	// Child is a bounds-checked accessor; like ChildrenCount it triggers a
	// fetch if status is NONE, except for a mailbox's child 0.
	Child(index int) Node
	// Fetch is idempotent: a no-op unless status is NONE.
	Fetch()
}

// Invalidate resets a node to status NONE, as happens on a user-forced
// rescan or an upstream UIDVALIDITY change. Only the node itself is reset;
// its children keep their own status. Children are not destroyed; the
// next fetch replaces them.
func Invalidate(n Node) {
	switch t := n.(type) {
	case *Mailbox:
		t.status = StatusNone
	case *MessageList:
		t.status = StatusNone
	case *Message:
		t.status = StatusNone
	case *Part:
		t.status = StatusNone
	}
}

// Package partaddr resolves identities between the three ways a MIME part
// is named: its position in the mailboxtree.Message's Part subtree, its
// dotted IMAP part ID (the "section" in BODY[section]), and its
// Content-ID for cid: URL resolution. None of this logic lives on
// mailboxtree.Part itself, since a Message's addressing scheme is a
// property of how FETCH responses were laid out, not of tree traversal.
package partaddr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/trojita/goimap-engine/mailboxtree"
)

// Kind enumerates the reasons part resolution can fail.
type Kind int

const (
	UnknownMessageIndex Kind = iota
	UnknownPartID
	UnknownContentID
)

// Error reports a failed part lookup, carrying the offending identifier so
// callers can log or display it without re-deriving it.
type Error struct {
	Kind  Kind
	Ident string
}

func (e *Error) Error() string {
	switch e.Kind {
	case UnknownPartID:
		return fmt.Sprintf("partaddr: no part with id %q", e.Ident)
	case UnknownContentID:
		return fmt.Sprintf("partaddr: no part with content-id %q", e.Ident)
	default:
		return fmt.Sprintf("partaddr: unknown message index %q", e.Ident)
	}
}

// PartID returns p's dotted IMAP section identifier, e.g. "1.2". It is
// simply the value recorded when the part tree was built from a
// BODYSTRUCTURE; this is its inverse, ResolvePartID.
func PartID(p *mailboxtree.Part) string {
	return p.ID
}

// ResolvePartID finds the part addressed by a dotted IMAP section
// identifier such as "1.2.3" or "1.2.HEADER"/"1.2.MIME"/"1.2.TEXT". The
// HEADER/TEXT/MIME suffix, if present, is returned separately since it
// names a FETCH section variant rather than a distinct tree node.
func ResolvePartID(msg *mailboxtree.Message, id string) (part *mailboxtree.Part, suffix string, err error) {
	segments := strings.Split(id, ".")
	last := segments[len(segments)-1]
	switch strings.ToUpper(last) {
	case "HEADER", "TEXT", "MIME":
		suffix = strings.ToUpper(last)
		segments = segments[:len(segments)-1]
	}
	if len(segments) == 0 {
		return nil, suffix, &Error{Kind: UnknownPartID, Ident: id}
	}

	var node mailboxtree.Node = msg
	for _, seg := range segments {
		n, convErr := strconv.Atoi(seg)
		if convErr != nil || n < 1 {
			return nil, suffix, &Error{Kind: UnknownPartID, Ident: id}
		}
		child := node.Child(n - 1)
		if child == nil {
			return nil, suffix, &Error{Kind: UnknownPartID, Ident: id}
		}
		node = child
	}

	p, ok := node.(*mailboxtree.Part)
	if !ok {
		return nil, suffix, &Error{Kind: UnknownPartID, Ident: id}
	}
	return p, suffix, nil
}

// ResolvePath walks dotted positional indices from a message down to a
// part, the same way a UI model's index path would, without requiring the
// caller to already know the part ID string.
func ResolvePath(msg *mailboxtree.Message, path []int) (*mailboxtree.Part, error) {
	var node mailboxtree.Node = msg
	for _, idx := range path {
		child := node.Child(idx)
		if child == nil {
			return nil, &Error{Kind: UnknownMessageIndex, Ident: fmt.Sprint(path)}
		}
		node = child
	}
	p, ok := node.(*mailboxtree.Part)
	if !ok {
		return nil, &Error{Kind: UnknownMessageIndex, Ident: fmt.Sprint(path)}
	}
	return p, nil
}

// ResolveCID finds the part whose Content-ID matches cid, which may be
// given with or without angle brackets. It performs a depth-first search
// over the message's part subtree, matching the first hit, consistent
// with "first wins" for ambiguous BODYSTRUCTURE data elsewhere in the
// engine.
func ResolveCID(msg *mailboxtree.Message, cid string) (*mailboxtree.Part, error) {
	want := strings.Trim(cid, "<>")
	var found *mailboxtree.Part
	var walk func(n mailboxtree.Node)
	walk = func(n mailboxtree.Node) {
		if found != nil {
			return
		}
		if p, ok := n.(*mailboxtree.Part); ok && p.ContentID() == want {
			found = p
			return
		}
		for i := 0; i < n.ChildrenCount(); i++ {
			walk(n.Child(i))
			if found != nil {
				return
			}
		}
	}
	walk(msg)
	if found == nil {
		return nil, &Error{Kind: UnknownContentID, Ident: cid}
	}
	return found, nil
}

// Package cache defines the pure façade tasks consult before issuing a
// command, and write through once a response arrives. Durability is
// deliberately unspecified by the contract; memstore and sqlitestore are
// the two concrete answers this repo ships.
package cache

import imap "github.com/trojita/goimap-engine"

// MailboxEntry is one LIST result: enough to reconstruct a mailboxtree
// node without re-asking the server.
type MailboxEntry struct {
	Name  string
	Sep   string
	Attrs []imap.MailboxAttr
}

// MessageMetadata is what FetchMessageMetadata fetches and caches: the
// three FETCH items the engine always requests together.
type MessageMetadata struct {
	Envelope      *imap.Envelope
	Size          int64
	BodyStructure imap.BodyStructure
}

// Store is the cache contract every task consults. A miss is reported by
// the second return value being false, never by a zero value, since a
// zero-length mailbox list and "never fetched" are different things.
type Store interface {
	ChildMailboxes(parentName string) ([]MailboxEntry, bool)
	ForgetChildMailboxes(parentName string)
	SetChildMailboxes(parentName string, entries []MailboxEntry)

	MessageMetadata(uid uint32) (*MessageMetadata, bool)
	SetMessageMetadata(uid uint32, meta *MessageMetadata)

	MessagePart(uid uint32, partID string) ([]byte, bool)
	SetMessagePart(uid uint32, partID string, data []byte)

	Close() error
}

// Package imap holds the data types shared by every layer of the engine:
// mailbox attributes and message flags, envelopes, body structures and
// sequence/UID sets. It has no knowledge of the wire format or of the tree
// that the model builds on top of these types.
package imap

// MailboxAttr is a mailbox attribute reported by LIST, as defined in
// RFC 3501 section 7.2.2.
type MailboxAttr string

const (
	AttrNoInferiors   MailboxAttr = "\\Noinferiors"
	AttrNoSelect      MailboxAttr = "\\Noselect"
	AttrMarked        MailboxAttr = "\\Marked"
	AttrUnmarked      MailboxAttr = "\\Unmarked"
	AttrHasChildren   MailboxAttr = "\\HasChildren"
	AttrHasNoChildren MailboxAttr = "\\HasNoChildren"
)

// Flag is a message flag, system or keyword, as defined in RFC 3501
// section 2.3.2.
type Flag string

const (
	FlagSeen     Flag = "\\Seen"
	FlagAnswered Flag = "\\Answered"
	FlagFlagged  Flag = "\\Flagged"
	FlagDeleted  Flag = "\\Deleted"
	FlagDraft    Flag = "\\Draft"
	FlagRecent   Flag = "\\Recent"
	FlagWildcard Flag = "\\*"
)

// UID is a message's unique identifier within a mailbox, valid as long as
// the mailbox's UIDVALIDITY doesn't change.
type UID uint32

// InboxName is the canonical name of the primary mailbox, per RFC 3501
// section 5.1.
const InboxName = "INBOX"

// DateTimeLayout is APPEND's optional date_time argument (RFC 3501
// section 9, "date-time"), the format WriteAppendHeader uses to encode a
// message's INTERNALDATE on the wire.
const DateTimeLayout = "2-Jan-2006 15:04:05 -0700"

// Package imapproto is the typed layer between the raw wire tokenizer
// (internal/wire) and the task engine. The task engine never touches a
// Decoder or Encoder directly: it submits a Command and receives typed
// Tagged/Untagged values.
package imapproto

import "github.com/trojita/goimap-engine"

// RespKind is the status of a tagged response, or of an untagged
// resp-cond-state / resp-cond-bye.
type RespKind string

const (
	OK      RespKind = "OK"
	NO      RespKind = "NO"
	BAD     RespKind = "BAD"
	PREAUTH RespKind = "PREAUTH"
	BYE     RespKind = "BYE"
)

// Tagged is a tagged status response: "<tag> OK/NO/BAD ...".
type Tagged struct {
	Tag  string
	Kind RespKind
	Code string
	Text string
}

// Untagged is any response beginning with "*". Exactly one of the typed
// fields is non-nil/non-zero; callers switch on whichever they care about.
type Untagged struct {
	Capability []string
	List       *List
	LSub       *List
	Status     *Status
	Search     []uint32
	Exists     *uint32
	Recent     *uint32
	Expunge    *uint32
	Flags      []imap.Flag
	Fetch      *Fetch
	Bye        *string
	Cond       *CondState // bare "* OK/NO/BAD ..." untagged status
}

type CondState struct {
	Kind RespKind
	Code string
	Text string
}

// List is the payload of an untagged LIST or LSUB response.
type List struct {
	Attrs []imap.MailboxAttr
	Delim string
	Name  string
}

// Status is the payload of an untagged STATUS response.
type Status struct {
	Name  string
	Items map[string]uint32
}

// Fetch is the payload of an untagged FETCH response: the message's
// sequence number and its requested data items, keyed by the item name
// exactly as it appeared on the wire (e.g. "ENVELOPE", "BODY[1.2]").
type Fetch struct {
	SeqNum uint32
	Attrs  map[string]any
}

// ContinueReq is a "+ ..." continuation request.
type ContinueReq struct {
	Text string
}

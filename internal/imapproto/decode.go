package imapproto

import (
	"fmt"
	"strconv"
	"strings"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/internal/wire"
	"github.com/trojita/goimap-engine/utf7"
)

// decodeMailboxName reverses wire.Encoder.Mailbox's modified UTF-7
// encoding; a name that fails to decode (a server that sent raw UTF-8,
// say) is passed through as-is rather than failing the whole response.
func decodeMailboxName(raw string) string {
	if strings.EqualFold(raw, "INBOX") {
		return raw
	}
	decoded, err := utf7.Decode(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ReadResponse reads and classifies a single server response line,
// including its trailing CRLF. Exactly one of the return values is
// non-nil.
func ReadResponse(dec *wire.Decoder) (*Tagged, *Untagged, *ContinueReq, error) {
	if dec.Special('+') {
		var text string
		dec.SP()
		dec.ExpectText(&text)
		if !dec.ExpectCRLF() {
			return nil, nil, nil, dec.Err()
		}
		return nil, nil, &ContinueReq{Text: text}, nil
	}

	var tag, typ string
	star := dec.Special('*')
	if !star && !dec.Atom(&tag) {
		return nil, nil, nil, fmt.Errorf("imapproto: expected tag or '*'")
	}
	if !dec.ExpectSP() || !dec.ExpectAtom(&typ) {
		return nil, nil, nil, dec.Err()
	}

	if tag != "" {
		t, err := readTaggedTail(dec, tag, typ)
		if err != nil {
			return nil, nil, nil, err
		}
		if !dec.ExpectCRLF() {
			return nil, nil, nil, dec.Err()
		}
		return t, nil, nil, nil
	}

	u, err := readUntagged(dec, typ)
	if err != nil {
		return nil, nil, nil, err
	}
	if !dec.ExpectCRLF() {
		return nil, nil, nil, dec.Err()
	}
	return nil, u, nil, nil
}

func readTaggedTail(dec *wire.Decoder, tag, typ string) (*Tagged, error) {
	kind := RespKind(strings.ToUpper(typ))
	switch kind {
	case OK, NO, BAD, PREAUTH, BYE:
	default:
		return nil, fmt.Errorf("imapproto: bad tagged status %q", typ)
	}
	if !dec.ExpectSP() {
		return nil, dec.Err()
	}
	code, text, err := readRespText(dec)
	if err != nil {
		return nil, err
	}
	return &Tagged{Tag: tag, Kind: kind, Code: code, Text: text}, nil
}

// readRespText reads [resp-text-code SP] text.
func readRespText(dec *wire.Decoder) (code, text string, err error) {
	if dec.Special('[') {
		c, ok := dec.UpTo(']')
		if !ok || !dec.ExpectSpecial(']') {
			return "", "", dec.Err()
		}
		code = c
		dec.SP()
	}
	dec.Text(&text)
	return code, text, dec.Err()
}

func readUntagged(dec *wire.Decoder, typ string) (*Untagged, error) {
	// number SP ("EXISTS" / "RECENT" / "EXPUNGE" / "FETCH")
	if typ[0] >= '0' && typ[0] <= '9' {
		n, err := strconv.ParseUint(typ, 10, 32)
		if err != nil {
			return nil, err
		}
		num := uint32(n)
		if !dec.ExpectSP() || !dec.ExpectAtom(&typ) {
			return nil, dec.Err()
		}
		switch strings.ToUpper(typ) {
		case "EXISTS":
			return &Untagged{Exists: &num}, nil
		case "RECENT":
			return &Untagged{Recent: &num}, nil
		case "EXPUNGE":
			return &Untagged{Expunge: &num}, nil
		case "FETCH":
			if !dec.ExpectSP() {
				return nil, dec.Err()
			}
			f, err := readFetch(dec, num)
			if err != nil {
				return nil, err
			}
			return &Untagged{Fetch: f}, nil
		default:
			return nil, fmt.Errorf("imapproto: unexpected numbered response %q", typ)
		}
	}

	switch strings.ToUpper(typ) {
	case "OK", "NO", "BAD":
		dec.SP()
		code, text, err := readRespText(dec)
		if err != nil {
			return nil, err
		}
		return &Untagged{Cond: &CondState{Kind: RespKind(strings.ToUpper(typ)), Code: code, Text: text}}, nil
	case "BYE":
		dec.SP()
		_, text, err := readRespText(dec)
		if err != nil {
			return nil, err
		}
		return &Untagged{Bye: &text}, nil
	case "CAPABILITY":
		caps, err := readAtomList(dec)
		if err != nil {
			return nil, err
		}
		return &Untagged{Capability: caps}, nil
	case "FLAGS":
		if !dec.ExpectSP() {
			return nil, dec.Err()
		}
		flags, err := readFlagList(dec)
		if err != nil {
			return nil, err
		}
		return &Untagged{Flags: flags}, nil
	case "LIST", "LSUB":
		if !dec.ExpectSP() {
			return nil, dec.Err()
		}
		l, err := readList(dec)
		if err != nil {
			return nil, err
		}
		if strings.ToUpper(typ) == "LSUB" {
			return &Untagged{LSub: l}, nil
		}
		return &Untagged{List: l}, nil
	case "STATUS":
		if !dec.ExpectSP() {
			return nil, dec.Err()
		}
		st, err := readStatus(dec)
		if err != nil {
			return nil, err
		}
		return &Untagged{Status: st}, nil
	case "SEARCH":
		nums, err := readNumList(dec)
		if err != nil {
			return nil, err
		}
		return &Untagged{Search: nums}, nil
	default:
		// Forward-compatible: log-and-ignore is the caller's job. Consume the
		// rest of the line so framing isn't lost.
		var rest string
		dec.SP()
		dec.Text(&rest)
		return &Untagged{}, nil
	}
}

func readAtomList(dec *wire.Decoder) ([]string, error) {
	var out []string
	for dec.SP() {
		var a string
		if !dec.ExpectAtom(&a) {
			return nil, dec.Err()
		}
		out = append(out, a)
	}
	return out, dec.Err()
}

func readNumList(dec *wire.Decoder) ([]uint32, error) {
	var out []uint32
	for dec.SP() {
		n, ok := dec.ExpectNumber()
		if !ok {
			return nil, dec.Err()
		}
		out = append(out, n)
	}
	return out, dec.Err()
}

func readFlagList(dec *wire.Decoder) ([]imap.Flag, error) {
	var flags []imap.Flag
	err := listOf(dec, func() bool {
		var f string
		if dec.Special('\\') {
			f = "\\"
		}
		var rest string
		if !dec.Atom(&rest) {
			return false
		}
		flags = append(flags, imap.Flag(f+rest))
		return true
	})
	return flags, err
}

func listOf(dec *wire.Decoder, f func() bool) error {
	if !dec.List(f) {
		return dec.Err()
	}
	return nil
}

func readList(dec *wire.Decoder) (*List, error) {
	l := &List{}
	err := listOf(dec, func() bool {
		var f string
		if dec.Special('\\') {
			f = "\\"
		}
		var rest string
		if !dec.Atom(&rest) {
			return false
		}
		l.Attrs = append(l.Attrs, imap.MailboxAttr(f+rest))
		return true
	})
	if err != nil {
		return nil, err
	}
	if !dec.ExpectSP() {
		return nil, dec.Err()
	}
	ok, present := dec.NString(&l.Delim)
	if !ok {
		return nil, dec.Err()
	}
	if !present {
		l.Delim = ""
	}
	if !dec.ExpectSP() || !dec.ExpectString(&l.Name) {
		return nil, dec.Err()
	}
	l.Name = decodeMailboxName(l.Name)
	return l, nil
}

func readStatus(dec *wire.Decoder) (*Status, error) {
	st := &Status{Items: map[string]uint32{}}
	if !dec.ExpectString(&st.Name) || !dec.ExpectSP() {
		return nil, dec.Err()
	}
	st.Name = decodeMailboxName(st.Name)
	err := listOf(dec, func() bool {
		var key string
		if !dec.ExpectAtom(&key) || !dec.ExpectSP() {
			return false
		}
		n, ok := dec.ExpectNumber()
		if !ok {
			return false
		}
		st.Items[strings.ToUpper(key)] = n
		return true
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func readFetch(dec *wire.Decoder, seqNum uint32) (*Fetch, error) {
	f := &Fetch{SeqNum: seqNum, Attrs: map[string]any{}}
	err := listOf(dec, func() bool {
		return readFetchAttr(dec, f)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func readFetchAttr(dec *wire.Decoder, f *Fetch) bool {
	var name string
	if !dec.ExpectAtom(&name) {
		return false
	}
	name = strings.ToUpper(name)

	// BODY[<section>] and BODY.PEEK[<section>] carry a bracketed section
	// before the SP that precedes the value. '[' is an atom character, so
	// the atom above already holds "BODY[" plus the start of the section;
	// the rest of the section runs up to the closing ']'.
	if i := strings.IndexByte(name, '['); i >= 0 && strings.HasPrefix(name, "BODY") {
		rest, ok := dec.UpTo(']')
		if !ok || !dec.ExpectSpecial(']') {
			return false
		}
		sectionID := name[i+1:] + rest
		if !dec.ExpectSP() {
			return false
		}
		var body string
		ok, present := dec.NString(&body)
		if !ok {
			return false
		}
		if !present {
			body = ""
		}
		f.Attrs["BODY["+sectionID+"]"] = body
		return true
	}

	if !dec.ExpectSP() {
		return false
	}

	switch name {
	case "ENVELOPE":
		env, err := readEnvelope(dec)
		if err != nil {
			return false
		}
		f.Attrs["ENVELOPE"] = env
	case "BODYSTRUCTURE", "BODY":
		bs, err := readBodyStructure(dec)
		if err != nil {
			return false
		}
		f.Attrs[name] = bs
	case "FLAGS":
		flags, err := readFlagList(dec)
		if err != nil {
			return false
		}
		f.Attrs["FLAGS"] = flags
	case "RFC822.SIZE":
		n, ok := dec.ExpectNumber()
		if !ok {
			return false
		}
		f.Attrs["RFC822.SIZE"] = n
	case "UID":
		n, ok := dec.ExpectNumber()
		if !ok {
			return false
		}
		f.Attrs["UID"] = imap.UID(n)
	case "INTERNALDATE":
		var s string
		if !dec.ExpectString(&s) {
			return false
		}
		f.Attrs["INTERNALDATE"] = s
	default:
		// Forward-compatible: consume and ignore.
		var s string
		dec.Text(&s)
	}
	return dec.Err() == nil
}

package imapproto

import (
	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/internal/wire"
)

// readEnvelope reads an ENVELOPE data item: a 10-element parenthesized
// list, per RFC 3501 section 7.4.2.
func readEnvelope(dec *wire.Decoder) (*imap.Envelope, error) {
	env := &imap.Envelope{}
	if !dec.ExpectSpecial('(') {
		return nil, dec.Err()
	}

	readNStr := func(dst *string) bool {
		s, _ := readNString(dec)
		*dst = s
		return dec.Err() == nil
	}

	ok := readNStr(&env.Date) && dec.ExpectSP() &&
		readNStr(&env.Subject) && dec.ExpectSP()
	if !ok {
		return nil, dec.Err()
	}

	fields := []*[]imap.Address{&env.From, &env.Sender, &env.ReplyTo, &env.To, &env.Cc, &env.Bcc}
	for _, f := range fields {
		addrs, err := readAddressList(dec)
		if err != nil {
			return nil, err
		}
		*f = addrs
		if !dec.ExpectSP() {
			return nil, dec.Err()
		}
	}

	if !readNStr(&env.InReplyTo) || !dec.ExpectSP() || !readNStr(&env.MessageID) {
		return nil, dec.Err()
	}
	if !dec.ExpectSpecial(')') {
		return nil, dec.Err()
	}
	return env, nil
}

func readNString(dec *wire.Decoder) (string, bool) {
	var s string
	ok, present := dec.NString(&s)
	if !ok {
		return "", false
	}
	if !present {
		return "", true
	}
	return s, true
}

// readAddressList reads NIL or a parenthesized list of address structures,
// per the "address-list" production (RFC 3501 section 4.4).
func readAddressList(dec *wire.Decoder) ([]imap.Address, error) {
	if dec.NIL() {
		return nil, nil
	}
	var addrs []imap.Address
	err := listOf(dec, func() bool {
		a, ok := readAddress(dec)
		if !ok {
			return false
		}
		addrs = append(addrs, a)
		return true
	})
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

func readAddress(dec *wire.Decoder) (imap.Address, bool) {
	var a imap.Address
	var name, adl, mailbox, host string
	if !dec.ExpectSpecial('(') {
		return a, false
	}
	ok := readField(dec, &name) && dec.ExpectSP() &&
		readField(dec, &adl) && dec.ExpectSP() &&
		readField(dec, &mailbox) && dec.ExpectSP() &&
		readField(dec, &host)
	if !ok || !dec.ExpectSpecial(')') {
		return a, false
	}
	a.Name, a.Mailbox, a.Host = name, mailbox, host
	return a, true
}

func readField(dec *wire.Decoder, dst *string) bool {
	s, ok := readNString(dec)
	*dst = s
	return ok
}

package imapproto

import (
	"strings"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/internal/wire"
)

// readBodyStructure reads a BODY or BODYSTRUCTURE data item (RFC 3501
// section 7.4.2, grammar production "body"). It distinguishes multipart
// from single-part by peeking for a nested '(' (the first child) versus an
// atom/string (the basic type field).
func readBodyStructure(dec *wire.Decoder) (imap.BodyStructure, error) {
	if !dec.ExpectSpecial('(') {
		return nil, dec.Err()
	}

	if peekIsParen(dec) {
		mp, err := readMultiPart(dec)
		if err != nil {
			return nil, err
		}
		if !dec.ExpectSpecial(')') {
			return nil, dec.Err()
		}
		return mp, nil
	}

	sp, err := readSinglePart(dec)
	if err != nil {
		return nil, err
	}
	if !dec.ExpectSpecial(')') {
		return nil, dec.Err()
	}
	return sp, nil
}

func peekIsParen(dec *wire.Decoder) bool {
	b, err := dec.Peek(1)
	return err == nil && b[0] == '('
}

func readMultiPart(dec *wire.Decoder) (*imap.BodyStructureMultiPart, error) {
	mp := &imap.BodyStructureMultiPart{Type: "multipart"}
	for {
		part, err := readBodyStructure(dec)
		if err != nil {
			return nil, err
		}
		mp.Parts = append(mp.Parts, part)
		if !peekIsParen(dec) {
			break
		}
	}
	if !dec.ExpectSP() || !dec.ExpectString(&mp.Subtype) {
		return nil, dec.Err()
	}

	// Extension data is optional; absence of a following SP means the
	// caller's closing ')' is next.
	if dec.SP() {
		ext := &imap.BodyStructureMultiPartExt{}
		params, err := readParamList(dec)
		if err != nil {
			return nil, err
		}
		ext.Params = params
		if dec.SP() {
			disp, err := readDisposition(dec)
			if err != nil {
				return nil, err
			}
			ext.Disposition = disp
			if dec.SP() {
				langs, err := readLanguage(dec)
				if err != nil {
					return nil, err
				}
				ext.Language = langs
				if dec.SP() {
					loc, _ := readNString(dec)
					ext.Location = loc
				}
			}
		}
		mp.Extended = ext
	}
	return mp, nil
}

func readSinglePart(dec *wire.Decoder) (*imap.BodyStructureSinglePart, error) {
	sp := &imap.BodyStructureSinglePart{}
	if !dec.ExpectString(&sp.Type) || !dec.ExpectSP() || !dec.ExpectString(&sp.Subtype) || !dec.ExpectSP() {
		return nil, dec.Err()
	}
	params, err := readParamList(dec)
	if err != nil {
		return nil, err
	}
	sp.Params = params
	if !dec.ExpectSP() {
		return nil, dec.Err()
	}
	sp.ID, _ = readNString(dec)
	sp.ID = strings.Trim(sp.ID, "<>")
	if !dec.ExpectSP() {
		return nil, dec.Err()
	}
	sp.Description, _ = readNString(dec)
	if !dec.ExpectSP() || !dec.ExpectString(&sp.Encoding) || !dec.ExpectSP() {
		return nil, dec.Err()
	}
	size, ok := dec.ExpectNumber()
	if !ok {
		return nil, dec.Err()
	}
	sp.Size = size

	mediaType := strings.ToLower(sp.Type)
	switch mediaType {
	case "message":
		if strings.EqualFold(sp.Subtype, "rfc822") && dec.SP() {
			env, err := readEnvelope(dec)
			if err != nil {
				return nil, err
			}
			if !dec.ExpectSP() {
				return nil, dec.Err()
			}
			body, err := readBodyStructure(dec)
			if err != nil {
				return nil, err
			}
			if !dec.ExpectSP() {
				return nil, dec.Err()
			}
			lines, ok := dec.ExpectNumber64()
			if !ok {
				return nil, dec.Err()
			}
			sp.MessageRFC822 = &imap.BodyStructureMessageRFC822{Envelope: env, Body: body, NumLines: lines}
		}
	case "text":
		if dec.SP() {
			dec.ExpectNumber64() // body-fld-lines; line count, not tracked on the node
		}
	}

	if dec.SP() {
		ext := &imap.BodyStructureSinglePartExt{}
		ext.MD5, _ = readNString(dec)
		if dec.SP() {
			disp, err := readDisposition(dec)
			if err != nil {
				return nil, err
			}
			ext.Disposition = disp
			if dec.SP() {
				langs, err := readLanguage(dec)
				if err != nil {
					return nil, err
				}
				ext.Language = langs
				if dec.SP() {
					loc, _ := readNString(dec)
					ext.Location = loc
				}
			}
		}
		sp.Extended = ext
	}
	return sp, nil
}

func readParamList(dec *wire.Decoder) (map[string]string, error) {
	if dec.NIL() {
		return nil, nil
	}
	params := map[string]string{}
	var key string
	i := 0
	err := listOf(dec, func() bool {
		s, ok := readNString(dec)
		if !ok {
			return false
		}
		if i%2 == 0 {
			key = strings.ToLower(s)
		} else {
			params[key] = s
		}
		i++
		return true
	})
	if err != nil {
		return nil, err
	}
	return params, nil
}

func readDisposition(dec *wire.Decoder) (*imap.BodyStructureDisposition, error) {
	if dec.NIL() {
		return nil, nil
	}
	d := &imap.BodyStructureDisposition{}
	if !dec.ExpectSpecial('(') || !dec.ExpectString(&d.Value) || !dec.ExpectSP() {
		return nil, dec.Err()
	}
	params, err := readParamList(dec)
	if err != nil {
		return nil, err
	}
	d.Params = params
	if !dec.ExpectSpecial(')') {
		return nil, dec.Err()
	}
	return d, nil
}

func readLanguage(dec *wire.Decoder) ([]string, error) {
	if dec.NIL() {
		return nil, nil
	}
	var s string
	if ok, present := dec.NString(&s); ok && present {
		return []string{s}, nil
	}
	var langs []string
	err := listOf(dec, func() bool {
		l, ok := readNString(dec)
		if !ok {
			return false
		}
		langs = append(langs, l)
		return true
	})
	if err != nil {
		return nil, err
	}
	return langs, nil
}

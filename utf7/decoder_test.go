package utf7_test

import (
	"strings"
	"testing"

	"github.com/trojita/goimap-engine/utf7"
)

type decodeCase struct {
	name string
	in   string
	out  string
	ok   bool
}

type decodeGroup struct {
	name  string
	cases []decodeCase
}

var decodeGroups = []decodeGroup{
	{
		name: "PassthroughAndLiteralAmpersand",
		cases: []decodeCase{
			{"empty", "", "", true},
			{"plain ascii", "abc", "abc", true},
			{"mailbox name never needing a shift", "INBOX", "INBOX", true},
			{"bare null shift is a literal ampersand", "&-", "&", true},
			{"leading literal ampersand", "&-abc", "&abc", true},
			{"trailing literal ampersand", "abc&-", "abc&", true},
			{"literal ampersand between letters", "a&-b&-c", "a&b&c", true},
			{"one shifted byte", "&ABk-", "\x19", true},
			{"another shifted byte", "&AB8-", "\x1F", true},
			{"ampersand without terminator is just text", "ABk-", "ABk-", true},
			{"shift and literal ampersand interleaved", "&-,&-&AP8-&-", "&,&ÿ&", true},
			{"literal ampersand then shift then literal", "&-&-,&AP8-&-", "&&,ÿ&", true},
			{"mixed literal and shifted runs", "abc &- &AP8A,wD,- &- xyz", "abc & ÿÿÿ & xyz", true},
		},
	},
	{
		name: "IllegalSelfRepresentingBytes",
		cases: []decodeCase{
			{"NUL", "\x00", "", false},
			{"unit separator", "\x1F", "", false},
			{"bare LF", "abc\n", "", false},
			{"DEL", "abc\x7Fxyz", "", false},
			{"replacement character", "�", "", false},
			{"cyrillic letter", "М", "", false},
		},
	},
	{
		name: "InvalidBase64Alphabet",
		cases: []decodeCase{
			{"slash and plus not in the restricted alphabet", "&/+8-", "", false},
			{"asterisk", "&*-", "", false},
			{"space inside a shift", "&ZeVnLIqe -", "", false},
		},
	},
	{
		name: "ControlBytesInsideShift",
		cases: []decodeCase{
			{"CRLF mid-shift", "&ZeVnLIqe\r\n-", "", false},
			{"double CRLF mid-shift", "&ZeVnLIqe\r\n\r\n-", "", false},
			{"CRLF splitting a shift", "&ZeVn\r\n\r\nLIqe-", "", false},
		},
	},
	{
		name: "PaddingMustBeStripped",
		cases: []decodeCase{
			{"single pad char", "&AAAAHw=-", "", false},
			{"double pad char", "&AAAAHw==-", "", false},
			{"pad char mid-run", "&AAAAHwB,AIA=-", "", false},
			{"double pad char mid-run", "&AAAAHwB,AIA==-", "", false},
		},
	},
	{
		name: "ShiftBodyOneByteShort",
		cases: []decodeCase{
			{"two chars, not enough bits for a unit", "&2A-", "", false},
			{"four chars, still short", "&2ADc-", "", false},
			{"seven chars", "&AAAAHwB,A-", "", false},
			{"seven chars plus one pad", "&AAAAHwB,A=-", "", false},
			{"seven chars plus two pad", "&AAAAHwB,A==-", "", false},
			{"seven chars plus three pad", "&AAAAHwB,A===-", "", false},
			{"eight chars", "&AAAAHwB,AI-", "", false},
			{"eight chars plus one pad", "&AAAAHwB,AI=-", "", false},
			{"eight chars plus two pad", "&AAAAHwB,AI==-", "", false},
		},
	},
	{
		name: "UnterminatedOrEmptyShift",
		cases: []decodeCase{
			{"dangling ampersand", "&", "", false},
			{"shift never closed", "&Jjo", "", false},
			{"leading hyphen with no opening ampersand", "Jjo&", "", false},
			{"ampersand then immediate close then dangling ampersand", "&Jjo&", "", false},
			{"bang is not valid base64", "&Jjo!", "", false},
			{"plus mid-run never closes", "&Jjo+", "", false},
			{"ascii prefix before an unterminated shift", "abc&Jjo", "", false},
		},
	},
	{
		name: "NullShiftForbidden",
		cases: []decodeCase{
			{"two adjacent shifts", "&AGE-&Jjo-", "", false},
			{"two adjacent longer shifts", "&U,BTFw-&ZeVnLIqe-", "", false},
		},
	},
	{
		name: "AsciiSmugglesThroughBase64",
		cases: []decodeCase{
			{`"a" encoded instead of written raw`, "&AGE-", "", false},
			{`"&" encoded instead of the null-shift form`, "&ACY-", "", false},
			{`"hello" entirely in base64`, "&AGgAZQBsAGwAbw-", "", false},
			{`smiley plus "!" smuggled through base64`, "&JjoAIQ-", "", false},
		},
	},
	{
		name: "UnpairedOrMisorderedSurrogates",
		cases: []decodeCase{
			{"lone high surrogate", "&2AA-", "", false},
			{"lone high surrogate, different value", "&2AD-", "", false},
			{"lone low surrogate", "&3AA-", "", false},
			{"high surrogate followed by ascii", "&2AAAQQ-", "", false},
			{"high surrogate followed by noncharacter", "&2AD,,w-", "", false},
			{"low surrogate followed by high surrogate", "&3ADYAA-", "", false},
		},
	},
	{
		name: "LongRuns",
		cases: []decodeCase{
			{
				"long ascii run with emoji shifts trailing",
				"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa &2D3eCg- &2D3eCw- &2D3eDg-",
				"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa \U0001f60a \U0001f60b \U0001f60e",
				true,
			},
			{
				"long shift run sandwiched between ascii runs",
				"00000000000000000000 &MEIwQjBCMEIwQjBCMEIwQjBCMEIwQjBCMEIwQjBCMEIwQjBCMEIwQjBCMEIwQjBCMEIwQjBCMEIwQjBCMEIwQjBCMEIwQjBCMEI- 00000000000000000000",
				"00000000000000000000 " + strings.Repeat("\U00003042", 37) + " 00000000000000000000",
				true,
			},
		},
	},
}

func TestDecoder(t *testing.T) {
	dec := utf7.Encoding.NewDecoder()
	for _, group := range decodeGroups {
		t.Run(group.name, func(t *testing.T) {
			for _, c := range group.cases {
				t.Run(c.name, func(t *testing.T) {
					out, err := dec.String(c.in)
					if out != c.out {
						t.Errorf("Decode(%+q) = %+q, want %+q", c.in, out, c.out)
					}
					if c.ok && err != nil {
						t.Errorf("Decode(%+q) returned unexpected error: %v", c.in, err)
					}
					if !c.ok && err == nil {
						t.Errorf("Decode(%+q) should have failed", c.in)
					}
				})
			}
		})
	}
}

package imap

import (
	"fmt"
	"strconv"
	"strings"
)

// SeqRange is a single inclusive range of sequence numbers or UIDs. A Stop
// of 0 means "*", the largest number the server knows about.
type SeqRange struct {
	Start, Stop uint32
}

func (r SeqRange) String() string {
	star := func(n uint32) string {
		if n == 0 {
			return "*"
		}
		return strconv.FormatUint(uint64(n), 10)
	}
	if r.Start == r.Stop {
		return star(r.Start)
	}
	return star(r.Start) + ":" + star(r.Stop)
}

// SeqSet is an ordered, comma-separated list of sequence ranges, as used by
// FETCH, STORE, SEARCH and their UID-prefixed counterparts.
type SeqSet struct {
	ranges []SeqRange
}

// SeqSetNum builds a SeqSet with one single-number range per argument.
func SeqSetNum(nums ...uint32) SeqSet {
	var s SeqSet
	for _, n := range nums {
		s.AddRange(n, n)
	}
	return s
}

// SeqSetRange builds a SeqSet containing a single range.
func SeqSetRange(start, stop uint32) SeqSet {
	var s SeqSet
	s.AddRange(start, stop)
	return s
}

func (s *SeqSet) AddRange(start, stop uint32) {
	s.ranges = append(s.ranges, SeqRange{start, stop})
}

func (s SeqSet) Empty() bool {
	return len(s.ranges) == 0
}

func (s SeqSet) String() string {
	parts := make([]string, len(s.ranges))
	for i, r := range s.ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// Contains reports whether n falls within one of the set's ranges. A Stop
// of 0 ("*") is treated as unbounded, so "N:*" matches every n >= N.
func (s SeqSet) Contains(n uint32) bool {
	for _, r := range s.ranges {
		lo, hi := r.Start, r.Stop
		if lo > hi && hi != 0 {
			lo, hi = hi, lo
		}
		if hi == 0 {
			hi = ^uint32(0)
		}
		if n >= lo && n <= hi {
			return true
		}
	}
	return false
}

// ParseSeqSet parses the wire form of a sequence set, e.g. "1:3,5,9:*".
func ParseSeqSet(v string) (SeqSet, error) {
	var s SeqSet
	if v == "" {
		return s, fmt.Errorf("imap: empty sequence set")
	}
	for _, part := range strings.Split(v, ",") {
		if i := strings.IndexByte(part, ':'); i < 0 {
			n, err := parseSeqNum(part)
			if err != nil {
				return s, err
			}
			s.AddRange(n, n)
		} else {
			start, err := parseSeqNum(part[:i])
			if err != nil {
				return s, err
			}
			stop, err := parseSeqNum(part[i+1:])
			if err != nil {
				return s, err
			}
			s.AddRange(start, stop)
		}
	}
	return s, nil
}

func parseSeqNum(v string) (uint32, error) {
	if v == "*" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("imap: bad sequence number %q: %w", v, err)
	}
	return uint32(n), nil
}

// Package netpolicy implements the engine's network policy gate: a
// predicate on whether external content may be fetched, and the scheme
// routing table a rendering collaborator's URL requests pass through.
package netpolicy

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/trojita/goimap-engine/mailboxtree"
	"github.com/trojita/goimap-engine/partaddr"
)

// Transport is satisfied trivially by *http.Client; it is named so the
// gate's own tests can substitute a fake instead of a real network.
type Transport interface {
	Get(url string) (*http.Response, error)
}

// Kind enumerates why a request was refused.
type Kind int

const (
	PolicyDenied Kind = iota
)

// Error is returned for a forbidden request; it is never a task.Error
// since a denied URL fetch does not propagate as a task failure, only as
// a reply to the rendering collaborator.
type Error struct {
	URL    string
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("netpolicy: forbidden %q: %s", e.URL, e.Reason) }

// Gate decides whether a URL may be served, and to what.
type Gate struct {
	ExternalsEnabled bool
	Transport        Transport

	// OnRequestingExternal fires when a non-external-enabled http(s)/ftp
	// request is denied, letting the caller decide whether to unblock.
	OnRequestingExternal func(url string)
}

// Resolve serves trojita-imap://msg/ and cid: URLs straight from the
// tree, proxies http/https/ftp when externals are enabled, and denies
// everything else.
func (g *Gate) Resolve(url string, root func(path []int) (*mailboxtree.Message, error), cidLookup func(cid string) (*mailboxtree.Part, error)) ([]byte, error) {
	switch {
	case strings.HasPrefix(url, "trojita-imap://msg/"):
		return g.resolveMsgURL(url, root)
	case strings.HasPrefix(url, "cid:"):
		return g.resolveCID(strings.TrimPrefix(url, "cid:"), cidLookup)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "ftp://"):
		return g.resolveExternal(url)
	default:
		return nil, &Error{URL: url, Reason: "unrecognized scheme"}
	}
}

func (g *Gate) resolveMsgURL(url string, root func(path []int) (*mailboxtree.Message, error)) ([]byte, error) {
	path := strings.TrimPrefix(url, "trojita-imap://msg/")
	segments := strings.Split(path, "/")

	msgPath := make([]int, 0, len(segments))
	var suffix string
	for _, s := range segments {
		switch strings.ToUpper(s) {
		case "HEADER", "TEXT", "MIME":
			suffix = strings.ToUpper(s)
			continue
		}
		n, err := atoiMinusOne(s)
		if err != nil {
			return nil, &Error{URL: url, Reason: "malformed path"}
		}
		msgPath = append(msgPath, n)
	}
	if len(msgPath) == 0 {
		return nil, &Error{URL: url, Reason: "empty path"}
	}

	msg, err := root(msgPath[:1])
	if err != nil {
		return nil, &Error{URL: url, Reason: err.Error()}
	}
	part, err := partaddr.ResolvePath(msg, msgPath[1:])
	if err != nil {
		return nil, &Error{URL: url, Reason: err.Error()}
	}
	if suffix != "" {
		// BODY[id.HEADER]/[id.TEXT]/[id.MIME] are distinct FETCH section
		// variants from the whole-part BODY[id] this gate already has in
		// Part.Bytes; nothing in the task package fetches them separately,
		// so serving part.Bytes for one would silently hand back the wrong
		// bytes (the whole part body, not just its header/text/MIME
		// envelope) instead of failing loudly.
		return nil, &Error{URL: url, Reason: "unsupported section variant: " + suffix}
	}
	return part.Bytes, nil
}

func (g *Gate) resolveCID(cid string, lookup func(cid string) (*mailboxtree.Part, error)) ([]byte, error) {
	part, err := lookup(cid)
	if err != nil {
		return nil, &Error{URL: "cid:" + cid, Reason: err.Error()}
	}
	return part.Bytes, nil
}

func (g *Gate) resolveExternal(url string) ([]byte, error) {
	if !g.ExternalsEnabled {
		if g.OnRequestingExternal != nil {
			g.OnRequestingExternal(url)
		}
		return nil, &Error{URL: url, Reason: "externals disabled"}
	}
	resp, err := g.Transport.Get(url)
	if err != nil {
		return nil, &Error{URL: url, Reason: err.Error()}
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func atoiMinusOne(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("index must be >= 1: %q", s)
	}
	return n - 1, nil
}

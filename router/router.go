// Package router owns one IMAP connection's read loop and the process-wide
// mapping from open tags to the task that owns each, exactly as described
// for the engine's response dispatch: tagged responses go straight to
// their owner, untagged responses are offered to every active task in
// insertion order until one claims them.
package router

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/trojita/goimap-engine/internal"
	"github.com/trojita/goimap-engine/internal/imapproto"
	"github.com/trojita/goimap-engine/internal/wire"
	"github.com/trojita/goimap-engine/logging"
)

// TagKind records why a tag was issued, for diagnostics and for tasks that
// need to recognize their own continuation on a later response.
type TagKind int

const (
	TagCreate TagKind = iota
	TagListAfterCreate
	TagAppend
	TagFetchMetadata
	TagFetchPart
	TagList
	TagSelect
	TagLogin
	TagCapability
	TagLogout
	TagDelete
	TagStore
	TagExpunge
	TagIdle
	TagAuthenticate
	TagSearch
)

// TaggedHandler receives the tagged OK/NO/BAD response for a tag it owns.
type TaggedHandler interface {
	HandleTagged(tag *imapproto.Tagged)
}

// ContinuationHandler receives a "+" server challenge during a
// multi-step command such as AUTHENTICATE.
type ContinuationHandler interface {
	HandleContinuation(text string)
}

// UntaggedHandler is offered every untagged response on a connection in
// registration order until one returns true.
type UntaggedHandler interface {
	HandleUntagged(u *imapproto.Untagged) bool
}

// LostNotifiable is implemented by any TaggedHandler/UntaggedHandler that
// wants to hear about a dead connection even though nothing it's waiting
// for will ever arrive: Conn.fail calls HandleConnLost on every handler
// still holding an open tag or still registered as an untagged handler at
// the moment the connection dies, instead of leaving them to wait forever
// for a response the read loop has stopped producing.
type LostNotifiable interface {
	HandleConnLost(err error)
}

type tagEntry struct {
	kind    TagKind
	cargo   any
	handler TaggedHandler
}

// Conn is one IMAP connection: its wire codec, its tag table, and the set
// of tasks currently willing to claim an untagged response.
type Conn struct {
	nc  net.Conn
	dec *wire.Decoder
	enc *wire.Encoder

	log *logging.Logger

	mu       sync.Mutex
	tagNum   uint64
	tags     map[string]*tagEntry
	untagged []UntaggedHandler

	closed    bool
	lostErr   error
	onLost    []func(error)

	writeMu sync.Mutex

	contHandler ContinuationHandler
}

func NewConn(nc net.Conn, log *logging.Logger) *Conn {
	br := bufio.NewReader(nc)
	bw := bufio.NewWriter(nc)
	c := &Conn{
		nc:  nc,
		dec: wire.NewDecoder(br),
		enc: wire.NewEncoder(bw),
		log: log,
		tags: make(map[string]*tagEntry),
	}
	return c
}

// UpgradeTLS replaces the plain connection with a TLS client connection
// over the same socket, after a successful STARTTLS, and resets the wire
// codec's buffers so no plaintext bytes leak across the boundary. A nil
// config uses the system root CA pool and the server's own address as the
// expected name.
func (c *Conn) UpgradeTLS(config *tls.Config) error {
	if config == nil {
		config = &tls.Config{ServerName: hostOf(c.nc)}
	}
	tlsConn := tls.Client(c.nc, config)
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	c.nc = tlsConn
	c.dec = wire.NewDecoder(bufio.NewReader(tlsConn))
	c.enc = wire.NewEncoder(bufio.NewWriter(tlsConn))
	return nil
}

// UpgradeDeflate wraps the connection in a DEFLATE stream per RFC 4978,
// after a successful COMPRESS=DEFLATE. Like UpgradeTLS, it must run after
// the triggering command's tagged OK has been read and before anything
// else touches the wire, since framing changes mid-stream otherwise.
func (c *Conn) UpgradeDeflate() error {
	dc, err := internal.CreateDeflateConn(c.nc, flateDefaultLevel)
	if err != nil {
		return err
	}
	c.nc = dc
	c.dec = wire.NewDecoder(bufio.NewReader(dc))
	c.enc = wire.NewEncoder(bufio.NewWriter(dc))
	return nil
}

const flateDefaultLevel = -1 // flate.DefaultCompression

func hostOf(nc net.Conn) string {
	host, _, err := net.SplitHostPort(nc.RemoteAddr().String())
	if err != nil {
		return nc.RemoteAddr().String()
	}
	return host
}

// EnableLiteralPlus switches the encoder to the LITERAL+/LITERAL- wire
// form once CAPABILITY has confirmed the server supports it.
func (c *Conn) EnableLiteralPlus(v bool) { c.enc.LiteralPlus = v }

func (c *Conn) Encoder() *wire.Encoder { return c.enc }
func (c *Conn) Decoder() *wire.Decoder { return c.dec }

// Send serializes cmd while holding the connection's write lock, mirroring
// the teacher's encMutex: command issuance order on a connection must
// match the order tasks call Perform, and one literal write must finish
// before the next command's header starts.
func (c *Conn) Send(cmd interface{ Send(*wire.Encoder) error }) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := cmd.Send(c.enc); err != nil {
		return err
	}
	return c.flushStream()
}

// WithEncoder runs f with exclusive access to the connection's encoder,
// for commands like APPEND whose literal-in-the-middle shape doesn't fit
// the single-call Send interface.
func (c *Conn) WithEncoder(f func(enc *wire.Encoder)) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	f(c.enc)
	c.flushStream()
}

// streamFlusher is satisfied by internal.deflateConn once UpgradeDeflate
// has run. The encoder's own CRLF only flushes the bufio.Writer in front
// of c.nc; under DEFLATE that just hands the bytes to flate.Writer, which
// buffers them until told otherwise, so the command would sit unsent
// until the next one happened to push it out. flushStream closes that gap
// by reaching one layer further down after every command.
type streamFlusher interface{ Flush() error }

func (c *Conn) flushStream() error {
	if f, ok := c.nc.(streamFlusher); ok {
		return f.Flush()
	}
	return nil
}

// NextTag allocates a fresh tag and records its owner before the caller
// writes the command to the wire, eliminating the dispatch race described
// for the router: a response for this tag cannot arrive before the entry
// exists.
func (c *Conn) NextTag(kind TagKind, cargo any, handler TaggedHandler) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tagNum++
	tag := fmt.Sprintf("a%d", c.tagNum)
	c.tags[tag] = &tagEntry{kind: kind, cargo: cargo, handler: handler}
	return tag
}

// TagOwned reports whether tag is still in the table, for invariant 6's
// "every submitted tag is in the map until dispatched" property.
func (c *Conn) TagOwned(tag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tags[tag]
	return ok
}

// AddUntaggedHandler registers a task to be offered future untagged
// responses, in call order.
func (c *Conn) AddUntaggedHandler(h UntaggedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.untagged = append(c.untagged, h)
}

// RemoveUntaggedHandler unregisters a task once it has completed or
// failed, so it stops being offered responses it can no longer act on.
func (c *Conn) RemoveUntaggedHandler(h UntaggedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, u := range c.untagged {
		if u == h {
			c.untagged = append(c.untagged[:i], c.untagged[i+1:]...)
			return
		}
	}
}

// OnLost registers a callback invoked once, from the read loop's
// goroutine, when the connection is declared lost (I/O error or BYE).
func (c *Conn) OnLost(f func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLost = append(c.onLost, f)
}

// Run is the connection's read loop: it decodes one response at a time and
// dispatches it, until the connection fails or is closed. It is meant to
// run on its own goroutine, mirroring the teacher's Client.read, while
// every dispatched handler call runs synchronously on this one goroutine
// so tree mutation from different tasks never interleaves.
func (c *Conn) Run() {
	for {
		tagged, untagged, cont, err := imapproto.ReadResponse(c.dec)
		if err != nil {
			c.fail(err)
			return
		}
		switch {
		case tagged != nil:
			c.dispatchTagged(tagged)
		case untagged != nil:
			c.dispatchUntagged(untagged)
			if untagged.Bye != nil {
				c.fail(fmt.Errorf("server sent BYE: %s", *untagged.Bye))
				return
			}
		case cont != nil:
			c.dispatchContinuation(cont)
		}
	}
}

// ExpectContinuation registers h to receive the next "+" challenge. A
// command that may provoke one (AUTHENTICATE, a literal without
// LITERAL+) must call this before sending, since the challenge carries
// no tag to route by.
func (c *Conn) ExpectContinuation(h ContinuationHandler) {
	c.mu.Lock()
	c.contHandler = h
	c.mu.Unlock()
}

func (c *Conn) dispatchContinuation(cont *imapproto.ContinueReq) {
	c.mu.Lock()
	h := c.contHandler
	c.contHandler = nil
	c.mu.Unlock()
	if h == nil {
		c.log.Warnf("router: unclaimed continuation request %q", cont.Text)
		return
	}
	h.HandleContinuation(cont.Text)
}

func (c *Conn) dispatchTagged(t *imapproto.Tagged) {
	c.mu.Lock()
	entry, ok := c.tags[t.Tag]
	if ok {
		delete(c.tags, t.Tag)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Warnf("router: dropped tagged response for unknown tag %q", t.Tag)
		return
	}
	entry.handler.HandleTagged(t)
}

func (c *Conn) dispatchUntagged(u *imapproto.Untagged) {
	c.mu.Lock()
	handlers := make([]UntaggedHandler, len(c.untagged))
	copy(handlers, c.untagged)
	c.mu.Unlock()

	for _, h := range handlers {
		if h.HandleUntagged(u) {
			return
		}
	}
	c.log.Warnf("router: unclaimed untagged response %+v", u)
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.lostErr = err
	callbacks := make([]func(error), len(c.onLost))
	copy(callbacks, c.onLost)
	tagged := make([]TaggedHandler, 0, len(c.tags))
	for _, e := range c.tags {
		tagged = append(tagged, e.handler)
	}
	c.tags = make(map[string]*tagEntry)
	untagged := make([]UntaggedHandler, len(c.untagged))
	copy(untagged, c.untagged)
	c.untagged = nil
	c.mu.Unlock()

	if err != io.EOF {
		c.log.Errorf("router: connection lost: %v", err)
	}
	for _, f := range callbacks {
		f(err)
	}

	// Every task with an outstanding tag or an active untagged registration
	// is stuck waiting for a response the read loop will never produce
	// again; tell each one exactly once so it fails instead of hanging.
	notified := make(map[LostNotifiable]bool, len(tagged)+len(untagged))
	notify := func(h any) {
		if ln, ok := h.(LostNotifiable); ok && !notified[ln] {
			notified[ln] = true
			ln.HandleConnLost(err)
		}
	}
	for _, h := range tagged {
		notify(h)
	}
	for _, h := range untagged {
		notify(h)
	}
}

// Close closes the underlying socket; Run's next read will observe the
// resulting I/O error and invoke the lost callbacks.
func (c *Conn) Close() error { return c.nc.Close() }

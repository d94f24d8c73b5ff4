package task

import (
	"fmt"
	"net"
	"strings"

	"github.com/trojita/goimap-engine/internal"
	"github.com/trojita/goimap-engine/internal/imapproto"
	"github.com/trojita/goimap-engine/internal/wire"
	"github.com/trojita/goimap-engine/logging"
	"github.com/trojita/goimap-engine/router"
	"github.com/trojita/goimap-engine/sasl"
)

// Connection is a READY IMAP connection: the router.Conn plus the
// negotiated capability set and the name of whichever mailbox is
// currently selected on it, if any. The task engine guarantees at most
// one mailbox is selected per connection at a time.
type Connection struct {
	Conn         *router.Conn
	Capabilities map[string]bool
	Selected     string
	// SelectedReadOnly records whether Selected was opened via EXAMINE
	// rather than SELECT; a caller needing STORE/EXPUNGE against a mailbox
	// the connection already has open read-only must re-select it.
	SelectedReadOnly bool
	Log              *logging.Logger
}

func (c *Connection) HasCapability(name string) bool {
	return c.Capabilities[strings.ToUpper(name)]
}

// Dialer is injected so tests can substitute an in-memory pipe instead of
// a real socket.
type Dialer func() (net.Conn, error)

// CreateConnection opens the socket, reads the greeting, negotiates
// STARTTLS if requested, authenticates, and fetches capabilities up front,
// again after a STARTTLS upgrade, and once more after login, since some
// servers only advertise auth-gated extensions post-LOGIN. It terminates in a READY
// connection or a failure.
type CreateConnection struct {
	Base

	Dial           Dialer
	Username       string
	Password       string
	// AuthMechanism selects the SASL mechanism AUTHENTICATE falls back to
	// once LOGIN is unavailable: "plain" (default), "xoauth2" (Password
	// holds the bearer token), or "external" (Password is ignored).
	AuthMechanism  string
	UseStartTLS    bool
	UseCompression bool
	Log            *logging.Logger

	conn       *Connection
	stage      ccStage
	startTag   string
	loginTag   string
	capTag     string
	authTag    string
	compTag    string
	authClient sasl.Client
}

type ccStage int

const (
	ccAwaitGreeting ccStage = iota
	ccAwaitInitialCapability
	ccAwaitStartTLS
	ccAwaitPostTLSCapability
	ccAwaitLogin
	ccAwaitFinalCapability
	ccAwaitCompress
)

func NewCreateConnection(dial Dialer, username, password string, useStartTLS bool, log *logging.Logger) *CreateConnection {
	return &CreateConnection{Dial: dial, Username: username, Password: password, AuthMechanism: "plain", UseStartTLS: useStartTLS, Log: log}
}

// Result returns the established connection once Completed reports true.
func (t *CreateConnection) Result() *Connection { return t.conn }

func (t *CreateConnection) Perform() {
	if t.wasAborted() {
		return
	}
	nc, err := t.Dial()
	if err != nil {
		t.fail(newErr(ConnectionLost, "dial", err))
		return
	}

	rc := router.NewConn(nc, t.Log)
	t.conn = &Connection{Conn: rc, Capabilities: map[string]bool{}, Log: t.Log}
	rc.AddUntaggedHandler(t)
	rc.OnLost(func(err error) {
		t.fail(newErr(ConnectionLost, "connection lost during setup", err))
	})
	go rc.Run()
}

func (t *CreateConnection) HandleUntagged(u *imapproto.Untagged) bool {
	if u.Cond != nil && t.stage == ccAwaitGreeting {
		if u.Cond.Kind == imapproto.BYE {
			t.fail(newErr(ConnectionLost, "server rejected connection", fmt.Errorf("%s", u.Cond.Text)))
			return true
		}
		t.stage = ccAwaitInitialCapability
		t.sendCapability()
		return true
	}
	if u.Capability != nil {
		for _, c := range u.Capability {
			t.conn.Capabilities[strings.ToUpper(c)] = true
		}
		return true
	}
	return false
}

func (t *CreateConnection) sendCapability() {
	t.capTag = t.conn.Conn.NextTag(router.TagCapability, nil, t)
	t.conn.Conn.Send(imapproto.Capability(t.capTag))
}

func (t *CreateConnection) HandleTagged(tagged *imapproto.Tagged) {
	switch tagged.Tag {
	case t.capTag:
		if tagged.Kind != imapproto.OK {
			t.fail(newErr(CommandFailed, "CAPABILITY", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
			return
		}
		switch t.stage {
		case ccAwaitInitialCapability:
			if t.UseStartTLS {
				t.stage = ccAwaitStartTLS
				t.startTag = t.conn.Conn.NextTag(router.TagCapability, nil, t)
				t.conn.Conn.Send(imapproto.StartTLS(t.startTag))
				return
			}
			t.sendLogin()
		case ccAwaitPostTLSCapability:
			t.sendLogin()
		case ccAwaitFinalCapability:
			if t.UseCompression && t.conn.Capabilities["COMPRESS=DEFLATE"] {
				t.stage = ccAwaitCompress
				t.compTag = t.conn.Conn.NextTag(router.TagCapability, nil, t)
				t.conn.Conn.Send(imapproto.CompressDeflate(t.compTag))
				return
			}
			t.conn.Conn.RemoveUntaggedHandler(t)
			t.complete()
		}
	case t.compTag:
		if tagged.Kind != imapproto.OK {
			t.fail(newErr(CommandFailed, "COMPRESS DEFLATE", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
			return
		}
		if err := t.conn.Conn.UpgradeDeflate(); err != nil {
			t.fail(newErr(ConnectionLost, "DEFLATE upgrade", err))
			return
		}
		t.conn.Conn.RemoveUntaggedHandler(t)
		t.complete()
	case t.startTag:
		if tagged.Kind != imapproto.OK {
			t.fail(newErr(CommandFailed, "STARTTLS", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
			return
		}
		if err := t.conn.Conn.UpgradeTLS(nil); err != nil {
			t.fail(newErr(ConnectionLost, "TLS upgrade", err))
			return
		}
		t.conn.Capabilities = map[string]bool{}
		t.stage = ccAwaitPostTLSCapability
		t.sendCapability()
	case t.loginTag:
		if tagged.Kind != imapproto.OK {
			t.fail(newErr(CommandFailed, "LOGIN", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
			return
		}
		t.stage = ccAwaitFinalCapability
		t.sendCapability()
	case t.authTag:
		if tagged.Kind != imapproto.OK {
			t.fail(newErr(CommandFailed, "AUTHENTICATE", fmt.Errorf("%s %s", tagged.Kind, tagged.Text)))
			return
		}
		t.stage = ccAwaitFinalCapability
		t.sendCapability()
	}
}

// sendLogin picks LOGIN, or AUTHENTICATE with the AuthMechanism-selected
// SASL mechanism, depending on whether the
// server has advertised LOGINDISABLED (RFC 2595 mandates this once a
// connection reaches a state where plaintext LOGIN would expose the
// password, e.g. before STARTTLS, or when an administrator disables it
// outright).
func (t *CreateConnection) sendLogin() {
	t.stage = ccAwaitLogin
	if t.conn.Capabilities["LOGINDISABLED"] {
		t.sendAuthenticate()
		return
	}
	t.loginTag = t.conn.Conn.NextTag(router.TagLogin, nil, t)
	t.conn.Conn.Send(imapproto.Login(t.loginTag, t.Username, t.Password))
}

// sendAuthenticate issues AUTHENTICATE with whichever SASL mechanism
// AuthMechanism names, defaulting to PLAIN when unset.
func (t *CreateConnection) sendAuthenticate() {
	switch strings.ToLower(t.AuthMechanism) {
	case "xoauth2":
		t.authClient = sasl.NewXoauth2Client(t.Username, t.Password)
	case "external":
		t.authClient = sasl.NewExternalClient(t.Username)
	default:
		t.authClient = sasl.NewPlainClient(t.Username, t.Password, "")
	}
	mech, ir, err := t.authClient.Start()
	if err != nil {
		t.fail(newErr(CommandFailed, "AUTHENTICATE "+mech, err))
		return
	}
	t.authTag = t.conn.Conn.NextTag(router.TagAuthenticate, nil, t)
	t.conn.Conn.ExpectContinuation(t)
	t.conn.Conn.Send(imapproto.Authenticate(t.authTag, mech, ir))
}

// HandleContinuation answers a server challenge during AUTHENTICATE by
// feeding it to the SASL client and writing back its response.
func (t *CreateConnection) HandleContinuation(text string) {
	challenge, err := internal.DecodeSASL(text)
	if err != nil {
		t.fail(newErr(CommandFailed, "AUTHENTICATE", err))
		return
	}
	response, err := t.authClient.Next(challenge)
	if err != nil {
		t.fail(newErr(CommandFailed, "AUTHENTICATE", err))
		return
	}
	t.conn.Conn.ExpectContinuation(t)
	t.conn.Conn.WithEncoder(func(enc *wire.Encoder) {
		imapproto.AuthenticateContinuation(enc, response)
	})
}

// GetAnyConnection completes immediately against an already-READY
// connection, or spawns a CreateConnection and waits for it.
type GetAnyConnection struct {
	Base

	pool   *Pool
	create *CreateConnection
}

// Pool is the minimal "do we have a READY connection" registry; a real
// deployment has exactly one, but keeping it as an injected collaborator
// keeps GetAnyConnection testable without a live socket.
type Pool struct {
	conn       *Connection
	dial       Dialer
	user       string
	pass       string
	authMech   string
	tls        bool
	deflate    bool
	log        *logging.Logger
}

func NewPool(dial Dialer, user, pass, authMech string, useStartTLS, useCompression bool, log *logging.Logger) *Pool {
	return &Pool{dial: dial, user: user, pass: pass, authMech: authMech, tls: useStartTLS, deflate: useCompression, log: log}
}

func (p *Pool) Ready() *Connection { return p.conn }

// Adopt registers an already-established connection as the pool's READY
// one, for a caller that obtained it some other way (or a test).
func (p *Pool) Adopt(conn *Connection) { p.conn = conn }

func NewGetAnyConnection(pool *Pool) *GetAnyConnection {
	return &GetAnyConnection{pool: pool}
}

func (t *GetAnyConnection) Result() *Connection {
	if t.create != nil {
		return t.create.Result()
	}
	return t.pool.conn
}

func (t *GetAnyConnection) Perform() {
	if t.wasAborted() {
		return
	}
	if t.pool.conn != nil {
		t.complete()
		return
	}
	t.create = NewCreateConnection(t.pool.dial, t.pool.user, t.pool.pass, t.pool.tls, t.pool.log)
	if t.pool.authMech != "" {
		t.create.AuthMechanism = t.pool.authMech
	}
	t.create.UseCompression = t.pool.deflate
	t.create.OnDone(func(err error) {
		if err != nil {
			t.fail(err)
			return
		}
		t.pool.conn = t.create.Result()
		t.complete()
	})
	t.create.Perform()
}

package task

import (
	"time"

	"github.com/trojita/goimap-engine/internal/imapproto"
	"github.com/trojita/goimap-engine/internal/wire"
	"github.com/trojita/goimap-engine/router"
)

// Heartbeat is the liveness collaborator: it issues IDLE when the server
// advertises the IDLE capability, else falls back to a NOOP on a timer.
// It composes with the dependency DAG like any other task instead of
// needing special-casing, even though it never truly "completes" until
// Stop is called.
type Heartbeat struct {
	Base

	Conn     *Connection
	Interval time.Duration

	stopCh chan struct{}
	tag    string
	idling bool
}

func NewHeartbeat(conn *Connection, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = 29 * time.Minute // RFC 3501's suggested NOOP ceiling
	}
	return &Heartbeat{Conn: conn, Interval: interval, stopCh: make(chan struct{})}
}

func (t *Heartbeat) Perform() {
	if t.wasAborted() {
		return
	}
	t.Conn.Conn.AddUntaggedHandler(t)
	go t.loop()
}

func (t *Heartbeat) loop() {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.beat()
		}
	}
}

func (t *Heartbeat) beat() {
	if t.idling {
		return
	}
	if t.Conn.HasCapability("IDLE") {
		t.idling = true
		t.tag = t.Conn.Conn.NextTag(router.TagIdle, nil, t)
		t.Conn.Conn.Send(imapproto.IdleStart(t.tag))
		return
	}
	tag := t.Conn.Conn.NextTag(router.TagCapability, nil, t)
	t.tag = tag
	t.Conn.Conn.Send(imapproto.Noop(tag))
}

func (t *Heartbeat) HandleUntagged(u *imapproto.Untagged) bool {
	// IDLE's own untagged EXISTS/EXPUNGE/FETCH traffic is handled by
	// whichever mailbox-scoped task is active; Heartbeat only cares about
	// staying alive, so it never claims anything itself.
	return false
}

func (t *Heartbeat) HandleTagged(tagged *imapproto.Tagged) {
	if tagged.Tag != t.tag {
		return
	}
	t.idling = false
}

// Stop ends the heartbeat's timer loop and, if idling, ends the IDLE
// command with DONE.
func (t *Heartbeat) Stop() {
	close(t.stopCh)
	if t.idling {
		t.Conn.Conn.WithEncoder(func(enc *wire.Encoder) {
			enc.Atom("DONE")
			enc.CRLF()
		})
		t.idling = false
	}
	t.Conn.Conn.RemoveUntaggedHandler(t)
	t.complete()
}

// Command goimap-engine is a minimal driver exercising the engine end to
// end: connect, list the mailbox tree, select INBOX, and fetch the first
// message's envelope, logging each step the way a real client's smoke
// test would.
package main

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/trojita/goimap-engine/authstore"
	"github.com/trojita/goimap-engine/cache/sqlitestore"
	"github.com/trojita/goimap-engine/config"
	"github.com/trojita/goimap-engine/logging"
	"github.com/trojita/goimap-engine/mailboxtree"
	"github.com/trojita/goimap-engine/model"
	"github.com/trojita/goimap-engine/task"
)

func main() {
	log := logging.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.ServerAddr == "" {
		log.Fatalf("server_addr is not configured")
	}

	username, password, err := authstore.Resolve(cfg, cfg.Account)
	if err != nil {
		log.Fatalf("authstore: %v", err)
	}

	store, err := sqlitestore.Open(cfg.SQLiteCachePath)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	defer store.Close()

	dial := dialerFor(cfg)
	pool := task.NewPool(dial, username, password, cfg.AuthMechanism, cfg.TLSMode == config.TLSStartTLS, cfg.UseCompression, log)

	get := task.NewGetAnyConnection(pool)
	get.Perform()
	waitFor(&get.Base)
	if err := get.Failed(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	conn := get.Result()
	log.Infof("connected, capabilities: %v", conn.Capabilities)

	m := model.New(pool, store, log)
	m.Signals.ActivityHappening = func(active bool) {
		log.Debugf("activity: %v", active)
	}

	inbox := findOrAdoptInbox(m)
	// Fetching through Model would depend on GetAnyConnection a second
	// time; it's free here since the pool already holds conn.
	listAll := task.NewObtainSynchronizedMailbox(conn, inbox, true)
	listAll.Perform()
	waitFor(&listAll.Base)
	if err := listAll.Failed(); err != nil {
		log.Fatalf("select INBOX: %v", err)
	}

	ml := inbox.MessageList()
	fmt.Printf("INBOX has %d messages\n", ml.ChildrenCount())
	if ml.ChildrenCount() == 0 {
		return
	}

	msg := ml.Child(0).(*mailboxtree.Message)
	fetch := task.NewFetchMessageMetadata(conn, store, inbox, msg)
	fetch.Perform()
	waitFor(&fetch.Base)
	if err := fetch.Failed(); err != nil {
		log.Fatalf("fetch metadata: %v", err)
	}
	if msg.Envelope != nil {
		fmt.Printf("first message subject: %s\n", msg.Envelope.Subject)
	}
}

func findOrAdoptInbox(m *model.Model) *mailboxtree.Mailbox {
	for i := 0; i < m.RowCount(nil); i++ {
		if mb, ok := m.Child(nil, i).(*mailboxtree.Mailbox); ok && mb.Name == "INBOX" {
			return mb
		}
	}
	return mailboxtree.NewMailbox(m.Root, "INBOX", "/", nil)
}

func dialerFor(cfg *config.Config) task.Dialer {
	return func() (net.Conn, error) {
		if cfg.TLSMode == config.TLSImplicit {
			return tls.Dial("tcp", cfg.ServerAddr, &tls.Config{})
		}
		return net.DialTimeout("tcp", cfg.ServerAddr, 30*time.Second)
	}
}

func waitFor(b *task.Base) {
	done := make(chan struct{})
	b.OnDone(func(error) { close(done) })
	<-done
}

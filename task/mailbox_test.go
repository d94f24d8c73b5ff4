package task_test

import (
	"net"
	"strings"
	"testing"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/mailboxtree"
	"github.com/trojita/goimap-engine/router"
	"github.com/trojita/goimap-engine/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObtainSynchronizedMailboxRejectsNoSelect(t *testing.T) {
	root := mailboxtree.NewRootMailbox(nil, nil)
	mb := mailboxtree.NewMailbox(root, "Noselect Folder", "/", []imap.MailboxAttr{imap.AttrNoSelect})

	ot := task.NewObtainSynchronizedMailbox(nil, mb, false)
	ot.Perform()

	require.Error(t, ot.Failed(), "\\Noselect mailboxes must never be SELECTed")
}

func TestObtainSynchronizedMailboxSelectsAndTracksExists(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := &task.Connection{Conn: router.NewConn(client, silentLogger()), Log: silentLogger()}
	go conn.Conn.Run()

	go fakeServer(server, func(cmd string) string {
		switch {
		case strings.Contains(cmd, "UID SEARCH"):
			return "* SEARCH 101 102 103\r\n" + tagOf(cmd) + " OK UID SEARCH completed\r\n"
		case strings.Contains(cmd, "SELECT"):
			return "* 3 EXISTS\r\n" + tagOf(cmd) + " OK [READ-WRITE] SELECT completed\r\n"
		}
		return ""
	})

	root := mailboxtree.NewRootMailbox(nil, nil)
	mb := mailboxtree.NewMailbox(root, "INBOX", "/", nil)

	ot := task.NewObtainSynchronizedMailbox(conn, mb, false)
	ot.Perform()
	waitDone(t, &ot.Base)

	require.NoError(t, ot.Failed())
	assert.Equal(t, "INBOX", conn.Selected)
	require.Equal(t, 3, mb.MessageList().ChildrenCount(), "UID SEARCH ALL's three UIDs become the synced message list")
	assert.Equal(t, mailboxtree.StatusDone, mb.MessageList().Status())
	first, ok := mb.MessageList().Child(0).(*mailboxtree.Message)
	require.True(t, ok)
	assert.Equal(t, uint32(101), first.UID, "Sync must apply the server's real UIDs, not the EXISTS placeholder count")
}

func TestObtainSynchronizedMailboxInvalidatesPreviousSelection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := &task.Connection{Conn: router.NewConn(client, silentLogger()), Log: silentLogger(), Selected: "Other"}
	go conn.Conn.Run()

	go fakeServer(server, func(cmd string) string {
		switch {
		case strings.Contains(cmd, "UID SEARCH"):
			return "* SEARCH 9\r\n" + tagOf(cmd) + " OK UID SEARCH completed\r\n"
		case strings.Contains(cmd, "SELECT"):
			return tagOf(cmd) + " OK [READ-WRITE] SELECT completed\r\n"
		}
		return ""
	})

	root := mailboxtree.NewRootMailbox(nil, nil)
	mb := mailboxtree.NewMailbox(root, "INBOX", "/", nil)
	mb.MessageList().Sync([]uint32{1, 2})

	ot := task.NewObtainSynchronizedMailbox(conn, mb, false)
	ot.Perform()
	waitDone(t, &ot.Base)

	require.NoError(t, ot.Failed())
	require.Equal(t, 1, mb.MessageList().ChildrenCount(), "switching SELECTed mailboxes invalidates the stale list before the fresh UID SEARCH resyncs it")
	survivor, ok := mb.MessageList().Child(0).(*mailboxtree.Message)
	require.True(t, ok)
	assert.Equal(t, uint32(9), survivor.UID, "the old mailbox's UIDs 1,2 must not leak into the newly SELECTed one")
}

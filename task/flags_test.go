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

func newTestMessage(uid, seqNum uint32, flags ...imap.Flag) *mailboxtree.Message {
	root := mailboxtree.NewRootMailbox(nil, nil)
	mb := mailboxtree.NewMailbox(root, "INBOX", "/", nil)
	mb.MessageList().Sync([]uint32{uid})
	msg := mb.MessageList().MessageByUID(uid)
	msg.SetFlags(flags)
	return msg
}

func TestUpdateFlagsTaskAppliesOptimisticallyBeforeServerReplies(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := &task.Connection{Conn: router.NewConn(client, silentLogger()), Log: silentLogger()}
	go conn.Conn.Run()

	msg := newTestMessage(1, 1)

	go fakeServer(server, func(cmd string) string {
		if strings.Contains(cmd, "STORE") {
			return tagOf(cmd) + " OK STORE completed\r\n"
		}
		return ""
	})

	ut := task.NewUpdateFlagsTask(conn, []*mailboxtree.Message{msg}, imap.FlagSeen, true)
	ut.Perform()
	assert.True(t, msg.HasFlag(imap.FlagSeen), "flag is applied optimistically before the tagged OK arrives")

	waitDone(t, &ut.Base)
	require.NoError(t, ut.Failed())
}

func TestUpdateFlagsTaskReconcilesFromUntaggedFetch(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := &task.Connection{Conn: router.NewConn(client, silentLogger()), Log: silentLogger()}
	go conn.Conn.Run()

	msg := newTestMessage(1, 1)

	go fakeServer(server, func(cmd string) string {
		if strings.Contains(cmd, "STORE") {
			return "* 1 FETCH (FLAGS (\\Seen \\Flagged))\r\n" + tagOf(cmd) + " OK STORE completed\r\n"
		}
		return ""
	})

	ut := task.NewUpdateFlagsTask(conn, []*mailboxtree.Message{msg}, imap.FlagSeen, true)
	ut.Perform()
	waitDone(t, &ut.Base)

	require.NoError(t, ut.Failed())
	assert.True(t, msg.HasFlag(imap.FlagFlagged), "server's own FLAGS response must win over the optimistic guess")
}

func TestUpdateFlagsTaskCompletesImmediatelyWithNoMessages(t *testing.T) {
	ut := task.NewUpdateFlagsTask(nil, nil, imap.FlagSeen, true)
	ut.Perform()
	assert.NoError(t, ut.Failed())
}

func TestExpungeTaskRenumbersSurvivors(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := &task.Connection{Conn: router.NewConn(client, silentLogger()), Log: silentLogger()}
	go conn.Conn.Run()

	root := mailboxtree.NewRootMailbox(nil, nil)
	mb := mailboxtree.NewMailbox(root, "INBOX", "/", nil)
	mb.MessageList().Sync([]uint32{10, 20, 30})

	go fakeServer(server, func(cmd string) string {
		if strings.Contains(cmd, "EXPUNGE") {
			return "* 2 EXPUNGE\r\n" + tagOf(cmd) + " OK EXPUNGE completed\r\n"
		}
		return ""
	})

	et := task.NewExpungeTask(conn, mb)
	et.Perform()
	waitDone(t, &et.Base)

	require.NoError(t, et.Failed())
	require.Equal(t, 2, mb.MessageList().ChildrenCount())
	survivor, ok := mb.MessageList().Child(1).(*mailboxtree.Message)
	require.True(t, ok)
	assert.Equal(t, uint32(30), survivor.UID)
	assert.Equal(t, uint32(2), survivor.SeqNum(), "sequence numbers renumber after the expunged message")
}

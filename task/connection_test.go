package task_test

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trojita/goimap-engine/logging"
	"github.com/trojita/goimap-engine/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLogger() *logging.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logging.Logger{Logger: l}
}

// fakeServer reads one command line at a time from server and calls reply
// with it, letting each test script its own canned responses.
func fakeServer(server net.Conn, reply func(cmd string) string) {
	r := bufio.NewReader(server)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if out := reply(line); out != "" {
			if _, err := server.Write([]byte(out)); err != nil {
				return
			}
		}
	}
}

func waitDone(t *testing.T, b *task.Base) {
	done := make(chan struct{})
	b.OnDone(func(error) { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never finished")
	}
}

func tagOf(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func TestCreateConnectionPlainLogin(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go fakeServer(server, func(cmd string) string {
		switch {
		case strings.Contains(cmd, "LOGIN"):
			return tagOf(cmd) + " OK LOGIN completed\r\n"
		case strings.Contains(cmd, "CAPABILITY"):
			return "* CAPABILITY IMAP4rev1 IDLE\r\n" + tagOf(cmd) + " OK CAPABILITY completed\r\n"
		}
		return ""
	})

	create := task.NewCreateConnection(func() (net.Conn, error) { return client, nil }, "alice", "secret", false, silentLogger())
	create.Perform()

	// net.Pipe is unbuffered: the greeting can only be written once
	// Perform has started the client's read loop.
	_, err := server.Write([]byte("* OK IMAP4rev1 Service Ready\r\n"))
	require.NoError(t, err)
	waitDone(t, &create.Base)

	require.NoError(t, create.Failed())
	conn := create.Result()
	require.NotNil(t, conn)
	assert.True(t, conn.HasCapability("IDLE"))
}

func TestCreateConnectionLoginDisabledFallsBackToAuthenticatePlain(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sawAuthenticate := false
	go fakeServer(server, func(cmd string) string {
		switch {
		case strings.Contains(cmd, "AUTHENTICATE PLAIN"):
			// PLAIN always carries its response as SASL-IR on the command
			// line itself, so no "+" continuation round-trip happens here.
			sawAuthenticate = true
			return tagOf(cmd) + " OK AUTHENTICATE completed\r\n"
		case strings.Contains(cmd, "CAPABILITY"):
			return "* CAPABILITY IMAP4rev1 LOGINDISABLED\r\n" + tagOf(cmd) + " OK CAPABILITY completed\r\n"
		}
		return ""
	})

	create := task.NewCreateConnection(func() (net.Conn, error) { return client, nil }, "alice", "secret", false, silentLogger())
	create.Perform()

	_, err := server.Write([]byte("* OK IMAP4rev1 Service Ready\r\n"))
	require.NoError(t, err)
	waitDone(t, &create.Base)

	require.NoError(t, create.Failed())
	assert.True(t, sawAuthenticate, "LOGINDISABLED must trigger AUTHENTICATE PLAIN instead of LOGIN")
}

func TestCreateConnectionXoauth2CarriesBearerTokenInline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var authLine string
	go fakeServer(server, func(cmd string) string {
		switch {
		case strings.Contains(cmd, "AUTHENTICATE XOAUTH2"):
			authLine = cmd
			return tagOf(cmd) + " OK AUTHENTICATE completed\r\n"
		case strings.Contains(cmd, "CAPABILITY"):
			return "* CAPABILITY IMAP4rev1 LOGINDISABLED\r\n" + tagOf(cmd) + " OK CAPABILITY completed\r\n"
		}
		return ""
	})

	create := task.NewCreateConnection(func() (net.Conn, error) { return client, nil }, "alice", "token123", false, silentLogger())
	create.AuthMechanism = "xoauth2"
	create.Perform()

	_, err := server.Write([]byte("* OK IMAP4rev1 Service Ready\r\n"))
	require.NoError(t, err)
	waitDone(t, &create.Base)

	require.NoError(t, create.Failed())
	assert.Contains(t, authLine, "AUTHENTICATE XOAUTH2", "xoauth2 must select the XOAUTH2 mechanism, not PLAIN")
}

func TestCreateConnectionDialFailure(t *testing.T) {
	create := task.NewCreateConnection(func() (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Err: assertErr{}}
	}, "alice", "secret", false, silentLogger())
	create.Perform()
	waitDone(t, &create.Base)

	assert.Error(t, create.Failed())
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestGetAnyConnectionSpawnsCreateConnectionOnFirstCall(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go fakeServer(server, func(cmd string) string {
		switch {
		case strings.Contains(cmd, "LOGIN"):
			return tagOf(cmd) + " OK LOGIN completed\r\n"
		case strings.Contains(cmd, "CAPABILITY"):
			return "* CAPABILITY IMAP4rev1 IDLE\r\n" + tagOf(cmd) + " OK CAPABILITY completed\r\n"
		}
		return ""
	})
	pool := task.NewPool(func() (net.Conn, error) { return client, nil }, "alice", "secret", "", false, false, silentLogger())

	get := task.NewGetAnyConnection(pool)
	get.Perform()

	_, err := server.Write([]byte("* OK IMAP4rev1 Service Ready\r\n"))
	require.NoError(t, err)
	waitDone(t, &get.Base)

	require.NoError(t, get.Failed())
	require.NotNil(t, get.Result())
	assert.Same(t, get.Result(), pool.Ready(), "a freshly established connection must be registered back on the pool")
}

func TestGetAnyConnectionCompletesImmediatelyOncePoolIsReady(t *testing.T) {
	failingDial := func() (net.Conn, error) { return nil, assertErr{} }
	pool := task.NewPool(failingDial, "alice", "secret", "", false, false, silentLogger())

	first := task.NewGetAnyConnection(pool)
	first.Perform()
	waitDone(t, &first.Base)
	require.Error(t, first.Failed(), "a dial failure must fail the spawned CreateConnection")

	conn := &task.Connection{Log: silentLogger()}
	pool.Adopt(conn)

	second := task.NewGetAnyConnection(pool)
	second.Perform()
	waitDone(t, &second.Base)

	require.NoError(t, second.Failed())
	assert.Same(t, conn, second.Result(), "a READY pool must hand back its connection without dialing again")
}

func TestWaitAllRunsReadyOnceEveryDependencyCompletes(t *testing.T) {
	poolA := task.NewPool(nil, "", "", "", false, false, silentLogger())
	poolA.Adopt(&task.Connection{Log: silentLogger()})
	poolB := task.NewPool(nil, "", "", "", false, false, silentLogger())
	poolB.Adopt(&task.Connection{Log: silentLogger()})

	a := task.NewGetAnyConnection(poolA)
	b := task.NewGetAnyConnection(poolB)

	var ready bool
	task.WaitAll([]*task.Base{&a.Base, &b.Base}, func() { ready = true }, func(error) { t.Fatal("fail must not run") })
	assert.False(t, ready, "ready must not run before every dependency has completed")

	a.Perform()
	waitDone(t, &a.Base)
	assert.False(t, ready, "ready must wait for every dependency, not just the first")

	b.Perform()
	waitDone(t, &b.Base)
	assert.True(t, ready, "ready must run once the last dependency completes")
}

func TestWaitAllRunsFailOnFirstDependencyFailure(t *testing.T) {
	failingDial := func() (net.Conn, error) { return nil, assertErr{} }
	failing := task.NewGetAnyConnection(task.NewPool(failingDial, "", "", "", false, false, silentLogger()))

	var failErr error
	task.WaitAll([]*task.Base{&failing.Base}, func() { t.Fatal("ready must not run") }, func(err error) { failErr = err })

	failing.Perform()
	waitDone(t, &failing.Base)

	assert.Error(t, failErr, "a dial failure must propagate through WaitAll's fail callback")
}

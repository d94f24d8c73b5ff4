package task_test

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/trojita/goimap-engine/router"
	"github.com/trojita/goimap-engine/task"
	"github.com/stretchr/testify/assert"
)

func TestHeartbeatSendsIdleWhenCapable(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := &task.Connection{
		Conn:         router.NewConn(client, silentLogger()),
		Capabilities: map[string]bool{"IDLE": true},
		Log:          silentLogger(),
	}
	go conn.Conn.Run()

	line := make(chan string, 1)
	go func() {
		r := bufio.NewReader(server)
		l, err := r.ReadString('\n')
		if err == nil {
			line <- strings.TrimRight(l, "\r\n")
		}
		// Keep reading so the DONE that hb.Stop writes is consumed.
		io.Copy(io.Discard, r)
	}()

	hb := task.NewHeartbeat(conn, 20*time.Millisecond)
	hb.Perform()
	defer hb.Stop()

	select {
	case got := <-line:
		assert.Contains(t, got, "IDLE")
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat never issued IDLE")
	}
}

func TestHeartbeatFallsBackToNoopWithoutIdle(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := &task.Connection{
		Conn:         router.NewConn(client, silentLogger()),
		Capabilities: map[string]bool{},
		Log:          silentLogger(),
	}
	go conn.Conn.Run()

	line := make(chan string, 1)
	go func() {
		r := bufio.NewReader(server)
		l, err := r.ReadString('\n')
		if err == nil {
			line <- strings.TrimRight(l, "\r\n")
		}
	}()

	hb := task.NewHeartbeat(conn, 20*time.Millisecond)
	hb.Perform()
	defer hb.Stop()

	select {
	case got := <-line:
		assert.Contains(t, got, "NOOP")
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat never fell back to NOOP")
	}
}

func TestNewHeartbeatDefaultsInterval(t *testing.T) {
	hb := task.NewHeartbeat(&task.Connection{}, 0)
	assert.Equal(t, 29*time.Minute, hb.Interval)
}

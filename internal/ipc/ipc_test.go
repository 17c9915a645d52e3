package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func socketPath(t *testing.T) string {
	// unix socket paths are limited to ~100 bytes; t.TempDir can exceed that
	dir, err := os.MkdirTemp("", "friday")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "ctl.sock")
}

func TestServeAndSend(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := socketPath(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, path, func(_ context.Context, msg ControlMessage) Reply {
			switch msg.Cmd {
			case CmdPing:
				return Reply{Response: "pong", Success: true}
			case CmdProcess:
				return Reply{Response: "got " + msg.Text + " " + msg.Slots["query"], Success: true, Intent: "google_search"}
			default:
				return Reply{Response: "unknown command " + msg.Cmd}
			}
		})
	}()

	sendCtx, sendCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer sendCancel()

	require.Eventually(t, func() bool {
		_, err := Send(sendCtx, path, ControlMessage{Cmd: CmdPing})
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	reply, err := Send(sendCtx, path, ControlMessage{Cmd: CmdProcess, Text: "search", Slots: map[string]string{"query": "cats"}})
	require.NoError(t, err)
	assert.Equal(t, Reply{Response: "got search cats", Success: true, Intent: "google_search"}, reply)

	reply, err = Send(sendCtx, path, ControlMessage{Cmd: "dance"})
	require.NoError(t, err)
	assert.False(t, reply.Success)

	cancel()
	require.NoError(t, <-done)
	assert.NoFileExists(t, path)
}

func TestBadRequest(t *testing.T) {
	path := socketPath(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Serve(ctx, path, func(context.Context, ControlMessage) Reply { return Reply{Success: true} })

	var conn net.Conn
	require.Eventually(t, func() bool {
		var err error
		conn, err = net.Dial("unix", path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer conn.Close()

	_, err := conn.Write([]byte("{nope\n"))
	require.NoError(t, err)

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "bad request")
}

func TestSendNoDaemon(t *testing.T) {
	_, err := Send(context.Background(), filepath.Join(t.TempDir(), "missing.sock"), ControlMessage{Cmd: CmdPing})
	assert.Error(t, err)
}

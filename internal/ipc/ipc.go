// Package ipc is the local control socket used by friday-ctl.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const (
	CmdPing    = "ping"
	CmdProcess = "process"
	CmdTrigger = "trigger"
)

type ControlMessage struct {
	Cmd   string            `json:"cmd"`
	Text  string            `json:"text,omitempty"`
	Slots map[string]string `json:"slots,omitempty"`
}

type Reply struct {
	Response string `json:"response"`
	Success  bool   `json:"success"`
	Intent   string `json:"intent,omitempty"`
}

type Handler func(ctx context.Context, msg ControlMessage) Reply

// Serve accepts one JSON request per connection and answers with one JSON
// reply. It removes a stale socket first and returns when ctx is done.
func Serve(ctx context.Context, path string, handler Handler) error {
	_ = os.Remove(path)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("Control socket listening", "path", path)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer os.Remove(path)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Warn("Accept failed", "err", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			handleConn(ctx, conn, handler)
		}()
	}
}

func handleConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Debug("Bad control message", "err", err)
		_ = json.NewEncoder(conn).Encode(Reply{Response: "bad request"})
		return
	}

	_ = conn.SetReadDeadline(time.Time{})
	reply := handler(ctx, msg)
	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		log.Debug("Reply failed", "cmd", msg.Cmd, "err", err)
	}
}

// Send delivers msg to the daemon at path and waits for its reply.
func Send(ctx context.Context, path string, msg ControlMessage) (Reply, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Reply{}, fmt.Errorf("send: %w", err)
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}

// Package bus connects Friday as a shard to a websocket message hub.
// Commands addressed to the shard are dispatched and answered with a
// reply message to the sender.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	KindCommand = "command"
	KindReply   = "reply"
)

type Message struct {
	ID      string `json:"id,omitempty"`
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// Handler answers one command; the result becomes the reply content.
type Handler func(ctx context.Context, msg Message) string

type Client struct {
	url       string
	name      string
	reconnect time.Duration
	dialer    *websocket.Dialer
}

func NewClient(url, name string, reconnect time.Duration) *Client {
	if reconnect <= 0 {
		reconnect = 2 * time.Second
	}
	return &Client{
		url:       url,
		name:      name,
		reconnect: reconnect,
		dialer:    websocket.DefaultDialer,
	}
}

// Run keeps a connection to the hub until ctx is done, reconnecting after
// every failure.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	for {
		err := c.session(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("Bus connection lost", "url", c.url, "err", err)

		t := time.NewTimer(c.reconnect)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (c *Client) session(ctx context.Context, handler Handler) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	log.Info("Connected to bus", "url", c.url, "shard", c.name)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if isClosed(err) {
				return fmt.Errorf("closed: %w", err)
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug("Skipping malformed bus message", "err", err)
			continue
		}
		if msg.Kind != KindCommand || (msg.To != "" && msg.To != c.name) {
			continue
		}

		reply := Message{
			ID:      msg.ID,
			From:    c.name,
			To:      msg.From,
			Kind:    KindReply,
			Content: handler(ctx, msg),
		}
		if reply.ID == "" {
			reply.ID = uuid.NewString()
		}

		data, err := json.Marshal(reply)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}

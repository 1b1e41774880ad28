// Package ws provides a WebSocket client for the ralph-tui gateway. Unlike
// the teacher's request/response Frame protocol, this gateway has no
// commands to send: the client only dials, reads raw JSON-encoded
// events.Event messages, and closes. Grounded on the teacher's
// clients/ws/client.go Dial/ReadFrame/Close shape.
package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"

	"github.com/dohr-michael/ralph-tui/internal/events"
)

// Client is a WebSocket client for the ralph-tui gateway's event stream.
type Client struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to the gateway's /api/events/ws endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)
	return &Client{conn: conn, ctx: clientCtx, cancel: cancel}, nil
}

// ReadEvent blocks for the next event from the gateway.
func (c *Client) ReadEvent() (events.Event, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return events.Event{}, err
	}
	var e events.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return e, nil
}

// Events starts a goroutine that reads events until the connection closes
// or ctx is done, delivering each to the returned channel. The channel is
// closed when reading stops; the caller should drain it to detect EOF.
func (c *Client) Events() <-chan events.Event {
	out := make(chan events.Event)
	go func() {
		defer close(out)
		for {
			e, err := c.ReadEvent()
			if err != nil {
				return
			}
			select {
			case out <- e:
			case <-c.ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

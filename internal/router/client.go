package router

import (
	"context"
	"fmt"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/you/extraneous/internal/protocol"
)

// Client is the page-script side of the message channel. Exchanges are
// one-shot and serialized on the single connection; concurrent senders queue
// on the mutex.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Dial connects to the background daemon's channel endpoint and probes it
// with an echo request.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/channel", nil)
	if err != nil {
		return nil, fmt.Errorf("dial channel: %w", err)
	}
	c := &Client{conn: conn}

	resp, err := c.Send(ctx, protocol.Request{Type: protocol.RequestEcho})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("echo probe: %w", err)
	}
	if resp.Type != protocol.ResponseEcho {
		_ = c.Close()
		return nil, fmt.Errorf("echo probe: unexpected response %q", resp.Type)
	}
	return c, nil
}

// Send performs one request/response exchange.
func (c *Client) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if err := req.Validate(); err != nil {
		return protocol.Response{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		return protocol.Response{}, fmt.Errorf("send request: %w", err)
	}
	var resp protocol.Response
	if err := wsjson.Read(ctx, c.conn, &resp); err != nil {
		return protocol.Response{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

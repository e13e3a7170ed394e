package ws

import (
	"log/slog"

	"github.com/gorilla/websocket"
)

// Client pushes marketplace events (balance changes, wallet movements,
// application status updates) to one websocket connection.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{conn: conn, log: logger}
}

// Send writes one event frame. A failed write closes the connection so the
// hub drops the subscriber.
func (c *Client) Send(payload []byte) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("websocket send failed", "error", err)
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close tears the connection down.
func (c *Client) Close() {
	_ = c.conn.Close()
}

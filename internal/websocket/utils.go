package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Conn serializes writes to a gorilla connection. Gorilla allows one
// concurrent writer, and the event forwarder writes alongside the reader.
type Conn struct {
	*websocket.Conn
	mu sync.Mutex
}

// Wrap prepares a connection for use: read limit and pong-driven deadlines.
func Wrap(conn *websocket.Conn, readLimit int64) *Conn {
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &Conn{Conn: conn}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(code, errMsg string) error {
	return c.WriteTyped(ErrorResponse{Event: EventError, Code: code, Error: errMsg})
}

// Ping sends a control ping; the peer's pong extends the read deadline.
func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// ReadRequest reads and decodes the next client message. Any message
// extends the read deadline.
func (c *Conn) ReadRequest(v *Request) error {
	if err := c.ReadJSON(v); err != nil {
		return err
	}
	return c.SetReadDeadline(time.Now().Add(pongWait))
}

// PingPeriod is how often the server pings idle clients.
func PingPeriod() time.Duration { return pingPeriod }

package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Connection timing. Clients never send data, only pong frames.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4 * 1024
)

// sendBuffer is how many messages may queue per client before it is
// considered slow and dropped.
const sendBuffer = 64

// Client is one websocket connection attached to a hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient registers conn with hub. It returns nil when the hub has
// already stopped.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := newClient(hub, conn)
	select {
	case hub.register <- client:
		return client
	case <-hub.done:
		return nil
	}
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
}

// Run serves the connection until the peer goes away or the hub drops the
// client. It must be called from the websocket handler, which returns when
// Run does.
func (c *Client) Run() {
	go c.writeLoop()
	c.drain()
}

// drain discards inbound frames so that pongs extend the read deadline and
// a closed peer is noticed.
func (c *Client) drain() {
	defer c.leave()

	c.conn.SetReadLimit(maxMessageSize)
	c.extendDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) extendDeadline() {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
	c.conn.Close()
}

// writeLoop is the only writer on the connection.
func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, nil)
				return
			}
			if err := c.write(msg.wsType(), msg.Data); err != nil {
				return
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	statePending int32 = iota
	stateOpen
	stateClosed
)

// Client is one live connection. It starts pending, becomes open once
// admitted to a session, and is closed exactly once.
type Client struct {
	ID   string
	code string

	conn  *websocket.Conn
	hub   *Hub
	send  chan []byte
	done  chan struct{}
	state atomic.Int32

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		conn: conn,
		hub:  h,
		send: make(chan []byte, h.opts.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Client) isOpen() bool {
	return c.state.Load() == stateOpen
}

// shutdown marks the client closed and tells the write pump to send a close
// frame with the given code. Later calls are no-ops.
func (c *Client) shutdown(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		c.state.Store(stateClosed)
		close(c.done)
	})
}

// readPump discards inbound frames and keeps the pong deadline fresh. Any
// read error, including the deadline passing, removes the client.
func (c *Client) readPump() {
	defer c.hub.Remove(c)

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Str("clientId", c.ID).Str("code", c.code).Msg("live connection read error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.hub.opts.WriteWait))
			return

		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("clientId", c.ID).Msg("live connection write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

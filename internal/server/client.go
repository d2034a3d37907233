package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/workhive/collab/internal/collab"
	"github.com/workhive/collab/internal/logger"
	"github.com/workhive/collab/internal/protocol"
)

// Time allowed to write a message to the peer.
const writeWait = 10 * time.Second

var errSendQueueFull = errors.New("send queue full")

// Client is the WebSocket transport for one connection. It implements
// collab.Link: the hub talks to it only through non-blocking Send, Alive
// and Close, so a slow or dead peer can never stall a handler.
type Client struct {
	id        string
	conn      *websocket.Conn
	send      chan *protocol.Envelope
	router    *collab.Router
	hub       *collab.Hub
	heartbeat time.Duration
	maxFrame  int64
	log       *logger.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	quit      chan struct{}
}

// NewClient wraps an upgraded WebSocket connection. The caller registers it
// with the hub and then assigns the resulting id via Bind before starting
// the pumps.
func NewClient(conn *websocket.Conn, router *collab.Router, hub *collab.Hub, heartbeat time.Duration, maxFrame int64, queueSize int, log *logger.Logger) *Client {
	return &Client{
		conn:      conn,
		send:      make(chan *protocol.Envelope, queueSize),
		router:    router,
		hub:       hub,
		heartbeat: heartbeat,
		maxFrame:  maxFrame,
		log:       log,
		quit:      make(chan struct{}),
	}
}

// Bind assigns the registry identifier. Must be called before the pumps start.
func (c *Client) Bind(id string) {
	c.id = id
}

// ID returns the registry identifier
func (c *Client) ID() string {
	return c.id
}

// Send queues an envelope for delivery. It never blocks: when the peer
// cannot drain its queue the envelope is dropped and the error surfaces to
// the broadcaster's log.
func (c *Client) Send(env *protocol.Envelope) error {
	if c.closed.Load() {
		return errors.New("connection closed")
	}
	select {
	case c.send <- env:
		return nil
	default:
		return errSendQueueFull
	}
}

// Alive reports whether the socket is still open
func (c *Client) Alive() bool {
	return !c.closed.Load()
}

// Close shuts the transport down. Idempotent; safe from any goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.quit)
		_ = c.conn.Close()
	})
	return nil
}

// ReadPump processes inbound frames in arrival order until the socket
// closes, then runs the disconnect cleanup exactly once. One goroutine per
// connection.
func (c *Client) ReadPump() {
	defer func() {
		c.router.Disconnect(c.id)
		_ = c.Close()
	}()

	pongWait := 2 * c.heartbeat
	c.conn.SetReadLimit(c.maxFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.hub.Touch(c.id)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Error("read error on connection %s: %v", c.id, err)
			}
			break
		}
		c.router.Dispatch(c.id, message)
	}
}

// WritePump drains the send queue to the socket and emits the transport
// heartbeat. One goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.heartbeat)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := env.Encode()
			if err != nil {
				c.log.Error("failed to encode envelope for %s: %v", c.id, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("write to %s failed: %v", c.id, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.quit:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

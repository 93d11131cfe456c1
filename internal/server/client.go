package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Placeboguy/anonymous-chat2/internal/chat"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one WebSocket connection. Its read pump feeds the chat Session
// one frame at a time; its write pump drains the outbox the Session and the
// Room's bus deliver into.
type Client struct {
	conn    *websocket.Conn
	hub     *Hub
	addr    string
	session *chat.Session
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	send      chan []byte
	closed    bool
	closeOnce sync.Once
}

// NewClient wraps conn and opens a Pending chat session for it.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	if conn != nil {
		conn.SetReadLimit(hub.cfg.MaxMessageSize)
	}
	ctx, cancel := context.WithCancel(hub.ctx)

	c := &Client{
		conn:   conn,
		hub:    hub,
		addr:   addr,
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan []byte, hub.cfg.SendBufferSize),
	}
	c.session = hub.room.Open(c, addr)
	c.log = hub.log.With("session", c.session.ID(), "remote", addr)
	return c
}

// Session returns the chat session bound to this connection.
func (c *Client) Session() *chat.Session {
	return c.session
}

// GetSendChan returns the client's outgoing frame queue.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// Deliver queues payload for the write pump without blocking. A full queue
// means the peer is not keeping up; the connection is dropped.
func (c *Client) Deliver(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: connection closed", chat.ErrDelivery)
	}
	select {
	case c.send <- payload:
		return nil
	default:
		go c.disconnect()
		return fmt.Errorf("%w: send buffer full", chat.ErrDelivery)
	}
}

// closeSend closes the outbox so the write pump sends a close frame and
// exits. Safe to call more than once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// disconnect cancels in-flight work and closes the socket, which unblocks
// the read pump.
func (c *Client) disconnect() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
				c.log.Warn("Error closing connection", "error", err)
			}
		}
	})
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs err according to how the connection ended. Every
// read error ends the read loop.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Info("Frame exceeded maximum size", "limit", c.hub.cfg.MaxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.log.Debug("Client closed connection", "reason", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Debug("Connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket close", "error", err)
	default:
		c.log.Debug("WebSocket read error", "error", err)
	}
}

// logHandleError reports the outcome of a rejected event at a level that
// matches who is at fault.
func (c *Client) logHandleError(err error) {
	switch {
	case errors.Is(err, chat.ErrPersistence):
		c.log.Warn("Event failed", "error", err)
	case errors.Is(err, chat.ErrSessionClosed), errors.Is(err, context.Canceled):
		c.log.Debug("Event abandoned", "error", err)
	default:
		c.log.Debug("Event rejected", "error", err)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.session.Close()
		c.hub.unregisterClient(c)
		c.disconnect()
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if err := c.session.HandleFrame(c.ctx, raw); err != nil {
			c.logHandleError(err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.session.Close()
		c.disconnect()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when
// the pump should stop.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// handleMessage writes one queued frame, or the close frame once the
// outbox is closed.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing message", "error", err)
		}
		return false
	}
	return true
}

func (c *Client) writeCloseMessage() bool {
	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Error writing close message", "error", err)
	}
	return false
}

// handlePing keeps the connection alive.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug("Error writing ping", "error", err)
		return false
	}
	return true
}

package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Placeboguy/anonymous-chat2/internal/chat"
)

// ErrHubClosed is returned when a connection arrives after shutdown began.
var ErrHubClosed = errors.New("hub is shutting down")

// HubConfig sizes per-connection resources.
type HubConfig struct {
	MaxMessageSize int64
	SendBufferSize int
}

// Hub tracks every open WebSocket connection, authenticated or not, starts
// and reaps their pumps, and closes them all on shutdown. Chat membership
// itself lives in the Room's registry.
type Hub struct {
	room       *chat.Room
	log        *slog.Logger
	cfg        HubConfig
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub serving room. Call Run in its own goroutine.
func NewHub(room *chat.Room, log *slog.Logger, cfg HubConfig) *Hub {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 16 << 10
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		room:       room,
		log:        log,
		cfg:        cfg,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Room returns the chat room served by the hub.
func (h *Hub) Room() *chat.Room {
	return h.room
}

// ConnectionCount returns the number of open connections, pending ones
// included.
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Register hands a freshly upgraded client to the hub, which starts its
// pumps.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
		client.closeSend()
	}
}

// Run is the hub's event loop. It returns once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			client.log.Debug("Client connected", "connections", clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			_, ok := h.clients[client]
			delete(h.clients, client)
			clientCount := len(h.clients)
			h.mutex.Unlock()

			if ok {
				client.closeSend()
				client.log.Debug("Client disconnected", "connections", clientCount)
			}
		}
	}
}

// shutdownClients closes every connection; their pumps then wind down.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		client.disconnect()
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown stops the hub and waits for every pump goroutine to finish or
// for timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

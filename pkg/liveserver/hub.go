// Package liveserver pushes engine state to dashboard clients over
// websockets: a Hub fans broadcasts out across a bounded worker pool
// instead of one goroutine per client per tick, Server owns the
// HTTP/websocket surface and per-IP rate limiting.
package liveserver

import (
	"context"
	"sync"

	"hedgegrid/pkg/concurrency"
)

// Client is one connected dashboard websocket.
type Client struct {
	id     string
	send   chan Message
	mu     sync.Mutex
	closed bool
}

func NewClient(id string) *Client {
	return &Client{id: id, send: make(chan Message, 256)}
}

// Send is non-blocking: a full channel means a slow client, not an error
// the caller should retry.
func (c *Client) Send(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) GetSendChan() <-chan Message {
	return c.send
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub owns the registered client set and serializes broadcast fan-out
// through its Run loop, so client map mutation never races a broadcast.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     Logger
	fanout     *concurrency.WorkerPool
}

// Logger is the minimal surface Hub needs, so it doesn't import the
// engine's full logging.Logger interface.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

func NewHub(logger Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		fanout:     concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "hub-broadcast", NonBlocking: false}, nil),
	}
}

// Run drives registration, unregistration, and broadcast until ctx is
// canceled, at which point every client is closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.fanout.Stop()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Info("client registered", "client_id", client.id, "total_clients", len(h.clients))
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Info("client unregistered", "client_id", client.id, "total_clients", len(h.clients))
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			clientList := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clientList = append(clientList, client)
			}
			h.mu.RUnlock()

			for _, client := range clientList {
				client := client
				h.fanout.Submit(func() {
					if !client.Send(message) {
						select {
						case h.unregister <- client:
						default:
						}
					}
				})
			}
		}
	}
}

func (h *Hub) Register(client *Client) { h.register <- client }

func (h *Hub) Unregister(client *Client) { h.unregister <- client }

// Broadcast queues msg for fan-out; a full broadcast buffer drops the
// message rather than blocking the caller (an HTTP handler pushing a
// tick/snapshot update).
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		if h.logger != nil {
			h.logger.Warn("broadcast channel full, dropping message", "type", msg.Type)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import "sync"

// Client is one authenticated connection. The transport drains Outbox and
// calls Close when the connection ends; hubs only ever do non-blocking sends.
type Client struct {
	ID   string
	Name string

	send chan any
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	hub *Hub
}

func NewClient(id, name string, buffer int) *Client {
	return &Client{
		ID:   id,
		Name: name,
		send: make(chan any, buffer),
		done: make(chan struct{}),
	}
}

func (c *Client) Outbox() <-chan any {
	return c.send
}

// Done is closed once the client is shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// deliver queues msg, closing the client if its buffer is full.
func (c *Client) deliver(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.Close()
		return false
	}
}

func (c *Client) sendError(err error) {
	c.deliver(ErrorMessage{Type: TypeError, Message: err.Error()})
}

func (c *Client) room() *Hub {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hub
}

// swapRoom records h as the client's room and returns the previous one.
func (c *Client) swapRoom(h *Hub) *Hub {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.hub
	c.hub = h
	return prev
}

// moveRoom sets the client's room to to only if it is still from.
func (c *Client) moveRoom(from, to *Hub) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hub != from {
		return false
	}
	c.hub = to
	return true
}

// leaveRoom clears the room only if it is still h.
func (c *Client) leaveRoom(h *Hub) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hub == h {
		c.hub = nil
	}
}

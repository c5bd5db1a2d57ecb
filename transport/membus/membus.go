// Package membus is an in-process broker. Every client connected to the same
// Broker sees the others' publishes, which makes it suitable for tests and for
// several peers sharing one process.
package membus

import (
	"context"
	"sync"

	"github.com/brensch/teamgrid/transport"
)

type Broker struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewBroker() *Broker {
	return &Broker{clients: make(map[*Client]struct{})}
}

// Connect attaches a new client to the broker.
func (b *Broker) Connect() *Client {
	c := &Client{broker: b, inbox: transport.NewInbox()}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

func (b *Broker) publish(msg transport.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		if c.subscribed(msg.Topic) {
			c.inbox.Push(msg)
		}
	}
}

func (b *Broker) remove(c *Client) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
}

// Client implements transport.Transport against a Broker.
type Client struct {
	broker *Broker
	inbox  *transport.Inbox

	mu      sync.Mutex
	filters []string
	closed  bool
}

var _ transport.Transport = (*Client)(nil)

func (c *Client) Subscribe(_ context.Context, filter string, _ transport.QoS) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	for _, f := range c.filters {
		if f == filter {
			return nil
		}
	}
	c.filters = append(c.filters, filter)
	return nil
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte, _ transport.QoS) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	cp := append([]byte(nil), payload...)
	c.broker.publish(transport.Message{Topic: topic, Payload: cp})
	return nil
}

func (c *Client) Messages() <-chan transport.Message { return c.inbox.C() }

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.broker.remove(c)
	c.inbox.Close()
	return nil
}

func (c *Client) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.filters {
		if transport.Match(f, topic) {
			return true
		}
	}
	return false
}

package wsbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/teamgrid/transport"
)

type Client struct {
	ws     *websocket.Conn
	inbox  *transport.Inbox
	logger *slog.Logger

	// gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string][]chan struct{}
	closed  bool
	done    chan struct{}
}

var _ transport.Transport = (*Client)(nil)

// Dial connects to a relay Server at url (ws:// or wss://).
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsbus dial %s: %w", url, err)
	}
	ws.SetReadLimit(readLimit)

	c := &Client{
		ws:      ws,
		inbox:   transport.NewInbox(),
		logger:  logger,
		pending: make(map[string][]chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	logger.Info("relay connected", "url", url)
	return c, nil
}

func (c *Client) readLoop() {
	defer c.shutdown()
	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("relay read failed", "err", err)
			}
			return
		}
		switch f.Op {
		case OpMsg:
			c.inbox.Push(transport.Message{Topic: f.Topic, Payload: f.Payload})
		case OpSubAck:
			c.mu.Lock()
			waiters := c.pending[f.Topic]
			if len(waiters) > 0 {
				close(waiters[0])
				c.pending[f.Topic] = waiters[1:]
			}
			c.mu.Unlock()
		}
	}
}

func (c *Client) write(ctx context.Context, f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteJSON(f)
}

// Subscribe returns once the relay has acknowledged the filter, so messages
// published after it returns are guaranteed to be delivered.
func (c *Client) Subscribe(ctx context.Context, filter string, qos transport.QoS) error {
	ack := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	c.pending[filter] = append(c.pending[filter], ack)
	c.mu.Unlock()

	if err := c.write(ctx, Frame{Op: OpSub, Topic: filter, QoS: qos}); err != nil {
		return fmt.Errorf("wsbus subscribe %s: %w", filter, err)
	}
	select {
	case <-ack:
		return nil
	case <-c.done:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos transport.QoS) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	if err := c.write(ctx, Frame{Op: OpPub, Topic: topic, Payload: payload, QoS: qos}); err != nil {
		return fmt.Errorf("wsbus publish %s: %w", topic, err)
	}
	return nil
}

func (c *Client) Messages() <-chan transport.Message { return c.inbox.C() }

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	c.shutdown()
	return c.ws.Close()
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	c.inbox.Close()
}

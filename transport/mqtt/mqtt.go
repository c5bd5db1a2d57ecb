// Package mqtt adapts an MQTT broker (for example a hosted HiveMQ cluster) to
// transport.Transport using the Eclipse Paho client.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/brensch/teamgrid/transport"
)

// Config holds broker connection settings, normally read from credentials.env.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
	// TLS forces TLS on; port 8883 always uses it.
	TLS            bool
	ConnectTimeout time.Duration
}

// DefaultConfig returns sensible defaults for a TLS broker.
func DefaultConfig() Config {
	return Config{
		Port:           8883,
		TLS:            true,
		ConnectTimeout: 10 * time.Second,
	}
}

func (c Config) brokerURL() string {
	scheme := "tcp"
	if c.TLS || c.Port == 8883 {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

type Client struct {
	client paho.Client
	inbox  *transport.Inbox
	logger *slog.Logger
}

var _ transport.Transport = (*Client)(nil)

// Dial connects to the broker. Connection loss after Dial is logged and closes
// the message channel; there is no automatic reconnect.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mqtt: broker host is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	c := &Client{inbox: transport.NewInbox(), logger: logger}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.brokerURL())
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	if cfg.TLS || cfg.Port == 8883 {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.Host})
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetOrderMatters(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Error("mqtt connection lost", "err", err)
		c.inbox.Close()
	})

	c.client = paho.NewClient(opts)
	if err := wait(ctx, c.client.Connect()); err != nil {
		c.inbox.Close()
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.brokerURL(), err)
	}
	logger.Info("mqtt connected", "broker", cfg.brokerURL(), "client_id", cfg.ClientID)
	return c, nil
}

func (c *Client) Subscribe(ctx context.Context, filter string, qos transport.QoS) error {
	tok := c.client.Subscribe(filter, byte(qos), func(_ paho.Client, m paho.Message) {
		c.inbox.Push(transport.Message{Topic: m.Topic(), Payload: append([]byte(nil), m.Payload()...)})
	})
	if err := wait(ctx, tok); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", filter, err)
	}
	c.logger.Debug("mqtt subscribed", "filter", filter, "qos", qos)
	return nil
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos transport.QoS) error {
	if !c.client.IsConnectionOpen() {
		return transport.ErrClosed
	}
	if err := wait(ctx, c.client.Publish(topic, byte(qos), false, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

func (c *Client) Messages() <-chan transport.Message { return c.inbox.C() }

func (c *Client) Close() error {
	c.client.Disconnect(250)
	c.inbox.Close()
	return nil
}

func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

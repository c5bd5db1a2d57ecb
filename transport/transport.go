// Package transport is the boundary between the peer engine and whatever
// publish/subscribe bus carries its messages.
package transport

import (
	"context"
	"errors"
	"strings"
)

// QoS is the delivery guarantee requested for a publish.
type QoS byte

const (
	AtMostOnce  QoS = 0
	AtLeastOnce QoS = 1
)

var ErrClosed = errors.New("transport closed")

// Message is one delivery from the bus.
type Message struct {
	Topic   string
	Payload []byte
}

// Transport delivers inbound messages on a channel and accepts publishes.
//
// Messages for one topic from one publisher arrive in publish order. The
// channel is closed when the transport shuts down.
type Transport interface {
	Subscribe(ctx context.Context, filter string, qos QoS) error
	Publish(ctx context.Context, topic string, payload []byte, qos QoS) error
	Messages() <-chan Message
	Close() error
}

// Match reports whether topic matches an MQTT-style filter. "+" matches one
// level and a trailing "#" matches any number of remaining levels.
func Match(filter, topic string) bool {
	if filter == topic {
		return true
	}
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")
	for i, f := range fl {
		if f == "#" {
			return i == len(fl)-1
		}
		if i >= len(tl) {
			return false
		}
		if f != "+" && f != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}

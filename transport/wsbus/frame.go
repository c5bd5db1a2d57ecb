// Package wsbus is a small publish/subscribe relay over websockets. A Server
// is an http.Handler acting as the broker; Dial returns a client that
// satisfies transport.Transport. It exists so a lobby can be played on a LAN
// without a hosted MQTT broker.
package wsbus

import (
	"time"

	"github.com/brensch/teamgrid/transport"
)

const (
	OpSub    = "sub"
	OpSubAck = "suback"
	OpPub    = "pub"
	OpMsg    = "msg"
)

// Frame is the single JSON message shape exchanged in both directions.
// Payload is base64 encoded on the wire by encoding/json.
type Frame struct {
	Op      string        `json:"op"`
	Topic   string        `json:"topic"`
	Payload []byte        `json:"payload,omitempty"`
	QoS     transport.QoS `json:"qos,omitempty"`
}

const (
	readLimit    = 1 << 20
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 1024
)

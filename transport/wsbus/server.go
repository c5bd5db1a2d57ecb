package wsbus

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/teamgrid/transport"
)

// Server relays every published frame to all connections with a matching
// subscription, including the publisher.
type Server struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.RWMutex
	conns map[*serverConn]struct{}
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			// Peers are CLIs, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[*serverConn]struct{}),
	}
}

// Conns returns the number of connected clients.
func (s *Server) Conns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

type serverConn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu      sync.RWMutex
	filters []string
}

func (c *serverConn) matches(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.filters {
		if transport.Match(f, topic) {
			return true
		}
	}
	return false
}

func (c *serverConn) close() {
	c.once.Do(func() { close(c.done) })
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &serverConn{ws: ws, send: make(chan []byte, sendBuffer), done: make(chan struct{})}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("relay client connected", "remote", r.RemoteAddr)

	go s.writeLoop(c)
	s.readLoop(c)

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.close()
	s.logger.Info("relay client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) readLoop(c *serverConn) {
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("relay read failed", "err", err)
			}
			return
		}
		switch f.Op {
		case OpSub:
			c.mu.Lock()
			c.filters = append(c.filters, f.Topic)
			c.mu.Unlock()
			if b, err := json.Marshal(Frame{Op: OpSubAck, Topic: f.Topic}); err == nil {
				select {
				case c.send <- b:
				case <-c.done:
					return
				}
			}
		case OpPub:
			s.broadcast(f)
		default:
			s.logger.Debug("relay ignoring frame", "op", f.Op)
		}
	}
}

func (s *Server) broadcast(f Frame) {
	b, err := json.Marshal(Frame{Op: OpMsg, Topic: f.Topic, Payload: f.Payload, QoS: f.QoS})
	if err != nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.conns {
		if !c.matches(f.Topic) {
			continue
		}
		select {
		case c.send <- b:
		default:
			// A reader this far behind would silently lose at-least-once
			// messages; drop the connection instead.
			s.logger.Warn("relay client too slow, disconnecting")
			c.close()
		}
	}
}

func (s *Server) writeLoop(c *serverConn) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.close()
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(writeWait))
			return
		}
	}
}

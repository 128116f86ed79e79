// Package hub pushes garden events to connected dashboards and terminals.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kubegarden/api/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Event is pushed to every subscribed client.
type Event struct {
	Type    string `json:"type"` // console.state, console.log, services.snapshot, history.exported
	Session string `json:"session,omitempty"`
	Payload any    `json:"payload"`
}

// Topic is the part of the event type before the first dot.
func (e Event) Topic() string {
	topic, _, _ := strings.Cut(e.Type, ".")
	return topic
}

type message struct {
	topic string
	data  []byte
}

type subscriber struct {
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]bool // empty receives everything
}

func (s *subscriber) wants(topic string) bool {
	return len(s.topics) == 0 || s.topics[topic]
}

type Hub struct {
	mu       sync.Mutex
	subs     map[*subscriber]bool
	outbox   chan message
	join     chan *subscriber
	leave    chan *subscriber
	done     chan struct{}
	upgrader websocket.Upgrader
}

func New(allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &Hub{
		subs:   make(map[*subscriber]bool),
		outbox: make(chan message, 256),
		join:   make(chan *subscriber),
		leave:  make(chan *subscriber),
		done:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				switch u.Hostname() {
				case "localhost", "127.0.0.1", "::1":
					return true
				}
				return false
			},
		},
	}
}

// Run delivers queued events until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for s := range h.subs {
				h.drop(s)
			}
			h.mu.Unlock()
			return
		case s := <-h.join:
			h.mu.Lock()
			h.subs[s] = true
			h.mu.Unlock()
		case s := <-h.leave:
			h.mu.Lock()
			h.drop(s)
			h.mu.Unlock()
		case msg := <-h.outbox:
			h.mu.Lock()
			for s := range h.subs {
				if !s.wants(msg.topic) {
					continue
				}
				select {
				case s.send <- msg.data:
				default:
					// slow consumer
					h.drop(s)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(s *subscriber) {
	if h.subs[s] {
		delete(h.subs, s)
		close(s.send)
	}
}

// Clients returns the number of connected dashboards.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast queues evt for delivery. Events are dropped when the queue is full.
func (h *Hub) Broadcast(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		logger.GetLogger().Warn("hub: marshal event", zap.String("type", evt.Type), zap.Error(err))
		return
	}
	select {
	case h.outbox <- message{topic: evt.Topic(), data: data}:
	default:
		logger.GetLogger().Warn("hub: queue full, dropping event", zap.String("type", evt.Type))
	}
}

// HandleConnect upgrades the request. ?topics=console,services limits
// delivery to those event topics.
func (h *Hub) HandleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.GetLogger().Warn("ws upgrade", zap.Error(err))
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, 64), topics: parseTopics(r.URL.Query().Get("topics"))}
	select {
	case h.join <- s:
	case <-h.done:
		conn.Close()
		return
	}

	go s.writeLoop()
	go s.readLoop(h)
}

func parseTopics(raw string) map[string]bool {
	topics := map[string]bool{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics[t] = true
		}
	}
	return topics
}

func (s *subscriber) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop only watches for the peer going away.
func (s *subscriber) readLoop(h *Hub) {
	defer func() {
		select {
		case h.leave <- s:
		case <-h.done:
		}
		s.conn.Close()
	}()
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

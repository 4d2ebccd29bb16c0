package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType tags a feed message.
type MessageType string

const (
	AssessmentEvent MessageType = "assessment"
	BatchEvent      MessageType = "batch"
	SystemStatus    MessageType = "system_status"
)

// Message is one frame of the dashboard feed.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

// ClientMessage is what a dashboard may send back.
type ClientMessage struct {
	Type  string      `json:"type"`
	Topic MessageType `json:"topic"`
}

type client struct {
	conn          *websocket.Conn
	send          chan []byte
	id            string
	mu            sync.Mutex
	subscriptions map[MessageType]bool
}

func (c *client) wants(t MessageType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions) == 0 || c.subscriptions[t]
}

type envelope struct {
	kind MessageType
	data []byte
}

// Hub fans feed messages out to connected websocket clients. Run owns the
// client set.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan envelope
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	status     func() any
	seq        atomic.Uint64
	count      atomic.Int64
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Run serves registrations and broadcasts until ctx is done. It must be
// called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.logger.Debug("websocket hub stopped")
	}()

	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int64(len(h.clients)))
			h.logger.Debug("feed client connected", zap.String("client", c.id), zap.Int("total", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.count.Store(int64(len(h.clients)))
			h.logger.Debug("feed client disconnected", zap.String("client", c.id), zap.Int("total", len(h.clients)))

		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.wants(msg.kind) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.count.Store(int64(len(h.clients)))

		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.count.Store(0)
			return
		}
	}
}

// Clients is the number of connected feed clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// SetStatus makes every new client receive a SystemStatus frame built by fn
// before any other message. Call it before Run.
func (h *Hub) SetStatus(fn func() any) {
	h.status = fn
}

func (h *Hub) frame(kind MessageType, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	frame, err := json.Marshal(Message{
		Type:      kind,
		Timestamp: time.Now().UTC(),
		Data:      payload,
		ID:        fmt.Sprintf("%d", h.seq.Add(1)),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return frame, nil
}

// Publish queues data for every subscribed client. A full queue drops the
// message.
func (h *Hub) Publish(kind MessageType, data any) error {
	frame, err := h.frame(kind, data)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- envelope{kind: kind, data: frame}:
	default:
		h.logger.Warn("feed queue full, dropping message", zap.String("type", string(kind)))
	}
	return nil
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn:          conn,
		send:          make(chan []byte, 64),
		id:            fmt.Sprintf("c%d", h.seq.Add(1)),
		subscriptions: make(map[MessageType]bool),
	}
	if h.status != nil {
		if frame, err := h.frame(SystemStatus, h.status()); err != nil {
			h.logger.Warn("status frame", zap.Error(err))
		} else {
			c.send <- frame
		}
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump(h.logger)
	go c.readPump(h)
}

func (c *client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("feed write failed", zap.String("client", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("feed read failed", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.mu.Lock()
		switch msg.Type {
		case "subscribe":
			c.subscriptions[msg.Topic] = true
		case "unsubscribe":
			delete(c.subscriptions, msg.Topic)
		}
		c.mu.Unlock()
	}
}

package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"spamdetect/progress"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// Message is the websocket frame for one progress event.
type Message struct {
	Type        progress.EventType `json:"type"`
	ExecutionID string             `json:"execution_id"`
	State       progress.State     `json:"state"`
	Message     string             `json:"message,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub fans progress events out to every connected websocket client. Run
// owns the client set; all other methods talk to it through channels.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
	log        *zap.Logger

	// a client that sends nothing, pongs included, for pongWait is dropped;
	// pings go out at 9/10 of it
	pongWait time.Duration

	connected atomic.Int64
	sent      atomic.Int64
	dropped   atomic.Int64
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log:      logger,
		pongWait: pongWait,
	}
}

// Run serves the hub until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.connected.Store(int64(len(h.clients)))
			h.log.Debug("progress client connected", zap.String("client", c.id), zap.Int("total", len(h.clients)))

		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			h.connected.Store(int64(len(h.clients)))
			h.log.Debug("progress client disconnected", zap.String("client", c.id), zap.Int("total", len(h.clients)))

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
					h.sent.Add(1)
				default:
					close(c.send)
					delete(h.clients, c)
					h.dropped.Add(1)
				}
			}
			h.connected.Store(int64(len(h.clients)))

		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.connected.Store(0)
			return
		}
	}
}

// Observe queues e for every client. Events are dropped, not blocked on,
// when the queue is full so a slow consumer never stalls an execution.
func (h *Hub) Observe(e progress.Event) {
	data, err := json.Marshal(Message{
		Type:        e.Type,
		ExecutionID: e.ExecutionID,
		State:       e.State,
		Message:     e.Message,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		h.log.Error("marshal progress event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.dropped.Add(1)
		h.log.Warn("progress broadcast queue full, dropping event", zap.String("execution_id", e.ExecutionID))
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), id: uuid.NewString()}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump(h.log, (h.pongWait*9)/10)
	go c.readPump(h)
}

func (c *client) writePump(log *zap.Logger, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("websocket write failed", zap.String("client", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; it exists to notice disconnects.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket read failed", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}

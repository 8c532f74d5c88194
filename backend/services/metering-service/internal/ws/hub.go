package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
)

// Event is one meter log line streamed to subscribers.
type Event struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"ts"`
}

// Hub streams meter events to websocket subscribers. It implements coordinator.Sink.
type Hub struct {
	mu           sync.RWMutex
	subscribers  map[uint64]*subscriber
	nextID       atomic.Uint64
	pingInterval time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
	upgrader     websocket.Upgrader
	now          func() time.Time
}

// NewHub builds an event hub.
func NewHub(pingInterval, writeTimeout time.Duration, logger *zap.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Hub{
		subscribers:  make(map[uint64]*subscriber),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		logger:       logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: writeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		now: time.Now,
	}
}

// Log implements coordinator.Sink.
func (h *Hub) Log(message string) {
	h.broadcast(Event{Level: LevelInfo, Message: message, Timestamp: h.now().UTC()})
}

// Warning implements coordinator.Sink.
func (h *Hub) Warning(message string) {
	h.broadcast(Event{Level: LevelWarning, Message: message, Timestamp: h.now().UTC()})
}

func (h *Hub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		sub.enqueue(data)
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// HandleWS is the HTTP handler for the event stream endpoint.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{
		id:     h.nextID.Add(1),
		conn:   conn,
		send:   make(chan []byte, 64),
		hub:    h,
		idle:   2 * h.pingInterval,
		closed: make(chan struct{}),
	}
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	h.logger.Info("event subscriber connected", zap.Uint64("subscriber_id", sub.id))
	go sub.writePump()
	go sub.readPump()
}

// Start pings subscribers until ctx is done, then disconnects them.
func (h *Hub) Start(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			for _, sub := range h.snapshot() {
				if err := sub.ping(); err != nil {
					h.logger.Info("event subscriber ping failed", zap.Uint64("subscriber_id", sub.id), zap.Error(err))
					sub.close()
				}
			}
		}
	}
}

// snapshot copies the subscriber set so slow writes happen outside h.mu.
func (h *Hub) snapshot() []*subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, id)
}

func (h *Hub) closeAll() {
	for _, sub := range h.snapshot() {
		sub.close()
	}
}

type subscriber struct {
	id        uint64
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	idle      time.Duration
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// enqueue never blocks; a slow subscriber loses events.
func (s *subscriber) enqueue(data []byte) {
	select {
	case <-s.closed:
	case s.send <- data:
	default:
		s.hub.logger.Warn("dropping meter event, subscriber buffer full", zap.Uint64("subscriber_id", s.id))
	}
}

func (s *subscriber) readPump() {
	defer s.close()
	s.conn.SetReadLimit(4096)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.idle))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.idle))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	for {
		select {
		case <-s.closed:
			return
		case msg := <-s.send:
			if err := s.write(websocket.TextMessage, msg); err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *subscriber) ping() error {
	return s.write(websocket.PingMessage, []byte("ping"))
}

func (s *subscriber) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.writeTimeout))
	return s.conn.WriteMessage(messageType, data)
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.hub.remove(s.id)
		_ = s.conn.Close()
		s.hub.logger.Info("event subscriber disconnected", zap.Uint64("subscriber_id", s.id))
	})
}

package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/ports/notify"
	"pet-care-tracker/internal/tracker/slotcache"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

type Message struct {
	Type   string          `json:"type"` // notice | refresh
	Notice *NoticePayload  `json:"notice,omitempty"`
	Today  *RefreshPayload `json:"today,omitempty"`
}

type NoticePayload struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Class    string `json:"class,omitempty"`
}

type RefreshPayload struct {
	Date    string       `json:"date"`
	Entries []EntryState `json:"entries"`
}

type EntryState struct {
	SubjectID string `json:"subject_id"`
	Category  string `json:"category"`
	Slot      string `json:"slot"`
	RecordID  string `json:"record_id,omitempty"`
	Pending   bool   `json:"pending"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub mantiene las conexiones websocket de la UI y les empuja avisos y
// el estado del día. Implementa notify.Notifier.
type Hub struct {
	upgrader websocket.Upgrader
	log      logger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:     logger.OrNop(log),
		clients: map[*client]struct{}{},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// readPump sólo detecta el cierre; la UI no manda mensajes.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		h.log.Error("websocket marshal failed", map[string]any{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			// cliente lento: se lo desconecta
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) Notify(ctx context.Context, n notify.Notice) {
	h.broadcast(Message{
		Type: "notice",
		Notice: &NoticePayload{
			Title:    n.Title,
			Message:  n.Message,
			Severity: string(n.Severity),
			Class:    n.Class,
		},
	})
}

// BroadcastRefresh manda el snapshot del día a todas las pantallas abiertas.
func (h *Hub) BroadcastRefresh(s slotcache.Snapshot) {
	p := &RefreshPayload{Date: s.Date(), Entries: make([]EntryState, 0, s.Len())}
	for _, e := range s.Entries() {
		p.Entries = append(p.Entries, EntryState{
			SubjectID: e.Key.SubjectID,
			Category:  string(e.Key.Category),
			Slot:      e.Key.Slot,
			RecordID:  e.RecordID,
			Pending:   e.Pending,
		})
	}
	h.broadcast(Message{Type: "refresh", Today: p})
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close desconecta a todos y rechaza conexiones nuevas.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

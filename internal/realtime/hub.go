package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Wire event names. These are part of the client contract and kept
// verbatim from the protocol the frontend speaks.
const (
	EventNewNotification      = "nueva_notificacion"
	EventAdminNotification    = "notificacion_admin"
	EventPendingNotifications = "notificaciones_pendientes"
	EventNewMessage           = "nuevo_mensaje"
	EventChatMessage          = "mensaje_chat"
	EventChatError            = "error_chat"
	EventUserJoin             = "user_join"
	EventUserLeave            = "user_leave"
)

const AdminRoom = "admin"

func UserRoom(userID string) string { return "user:" + userID }
func ChatRoom(chatID string) string { return "chat:" + chatID }

type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Conn wraps a websocket connection with a write lock. gorilla/websocket
// allows a single concurrent writer per connection, and a connection
// here is written to from two sides: its own read loop (history replay,
// chat errors) and hub broadcasts triggered by other goroutines. Every
// write must go through this wrapper.
type Conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *Conn) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(messageType, data)
}

// ReadMessage is safe to call concurrently with writes; reads are the
// read loop's alone.
func (c *Conn) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

type member struct {
	UserID string
	Name   string
}

type room struct {
	connections map[*Conn]member
}

// Hub tracks live websocket connections grouped into named rooms.
// A connection typically sits in its private user room, optionally the
// admin room, and any chat rooms it joined.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
	// reverse index so a dropped connection can leave everything at once
	conns map[*Conn]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]*room),
		conns: make(map[*Conn]map[string]struct{}),
	}
}

func (h *Hub) Join(roomID string, c *Conn, userID, name string) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{connections: make(map[*Conn]member)}
		h.rooms[roomID] = r
	}
	r.connections[c] = member{UserID: userID, Name: name}

	joined, ok := h.conns[c]
	if !ok {
		joined = make(map[string]struct{})
		h.conns[c] = joined
	}
	joined[roomID] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Leave(roomID string, c *Conn) {
	h.mu.Lock()
	h.leaveLocked(roomID, c)
	h.mu.Unlock()
}

// LeaveAll removes the connection from every room and closes it.
func (h *Hub) LeaveAll(c *Conn) {
	h.mu.Lock()
	for roomID := range h.conns[c] {
		h.leaveLocked(roomID, c)
	}
	delete(h.conns, c)
	h.mu.Unlock()
	_ = c.Close()
}

func (h *Hub) leaveLocked(roomID string, c *Conn) {
	r, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(r.connections, c)
	if len(r.connections) == 0 {
		delete(h.rooms, roomID)
	}
	if joined, ok := h.conns[c]; ok {
		delete(joined, roomID)
	}
}

// Emit sends an event to every connection in the room. Delivery is
// best-effort, at most once: connections that fail to write are dropped
// and nobody retries. Returns the number of connections written to.
func (h *Hub) Emit(roomID, event string, data any) int {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok {
		return 0
	}

	sent := 0
	for c := range r.connections {
		if err := c.writeMessage(websocket.TextMessage, payload); err != nil {
			_ = c.Close()
			delete(r.connections, c)
			if joined, ok := h.conns[c]; ok {
				delete(joined, roomID)
			}
			continue
		}
		sent++
	}
	return sent
}

// Member returns the identity the connection joined the room with.
func (h *Hub) Member(roomID string, c *Conn) (userID, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomID]; ok {
		m := r.connections[c]
		return m.UserID, m.Name
	}
	return "", ""
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Rooms: len(h.rooms), Connections: len(h.conns)}
}

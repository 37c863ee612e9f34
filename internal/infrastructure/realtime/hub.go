package realtime

import (
	"encoding/json"
	"sync"
)

// Event names on the wire. Inbound frames come from clients, outbound frames
// from the hub; both use the same {event, data} envelope.
const (
	// inbound
	EventJoin        = "join"
	EventSendMessage = "send-message"
	EventTyping      = "typing"
	EventMarkRead    = "mark-read"

	// outbound
	EventReceiveMessage = "receive-message"
	EventMessageSent    = "message-sent"
	EventUserTyping     = "user-typing"
	EventMessagesRead   = "messages-read"
)

// Frame is the envelope every socket message travels in.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub routes outbound events to users. Each user has a room holding every
// active connection (multiple tabs fan out). Delivery is fire-and-forget: an
// empty room drops the event silently, and nothing is replayed on reconnect;
// durable state lives in the message store.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Connection // userID -> connectionID -> connection
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]*Connection)}
}

// Join registers a connection in its user's room and starts its write loop.
func (h *Hub) Join(conn *Connection) {
	h.mu.Lock()
	room := h.rooms[conn.UserID]
	if room == nil {
		room = make(map[string]*Connection)
		h.rooms[conn.UserID] = room
	}
	room[conn.ID] = conn
	h.mu.Unlock()

	conn.Start()
}

// Leave removes a connection, dropping the room once it empties.
func (h *Hub) Leave(conn *Connection) {
	h.mu.Lock()
	if room, ok := h.rooms[conn.UserID]; ok {
		delete(room, conn.ID)
		if len(room) == 0 {
			delete(h.rooms, conn.UserID)
		}
	}
	h.mu.Unlock()
}

// Connected reports whether the user has at least one open connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID]) > 0
}

// Emit delivers an event to every connection of a user and reports how many
// sockets accepted it. Zero is normal when the user is offline.
func (h *Hub) Emit(userID, event string, data interface{}) int {
	payload, err := marshalFrame(event, data)
	if err != nil {
		return 0
	}

	h.mu.RLock()
	room := h.rooms[userID]
	conns := make([]*Connection, 0, len(room))
	for _, conn := range room {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if conn.Send(payload) == nil {
			delivered++
		}
	}
	return delivered
}

// EmitTo writes an event to one specific connection. Used for direct replies
// such as send acknowledgements, which must reach the originating tab only.
func (h *Hub) EmitTo(conn *Connection, event string, data interface{}) error {
	payload, err := marshalFrame(event, data)
	if err != nil {
		return err
	}
	return conn.Send(payload)
}

// Close terminates every connection and clears the rooms.
func (h *Hub) Close() {
	h.mu.Lock()
	var conns []*Connection
	for _, room := range h.rooms {
		for _, conn := range room {
			conns = append(conns, conn)
		}
	}
	h.rooms = make(map[string]map[string]*Connection)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(1001, "hub shutdown")
	}
}

func marshalFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
